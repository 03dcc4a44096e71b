// Copyright (c) Cancelable Authors.
// Licensed under the MIT License.

/*
Package source 提供可组合的取消触发器。

# 概述

Source 是挂接在操作作用域上的后台触发器：激活时附着到唯一的操作，
触发时取消该操作的令牌，停用时释放全部已获取的资源（定时器、监控
goroutine、信号订阅、回调注册）。激活消费源本身，二次激活返回
types.ErrSourceReused；停用幂等。

# 变体

  - DeadlineSource  — 单调时钟定时器，超时以 reason=timeout 触发；
    已过期的截止时间在激活时立即取消
  - PredicateSource — 周期轮询谓词，reason=condition；支持 sustained
    持续时间（连续为真才触发，一次为假即重置）；谓词报错上报
    OnSourceError 并继续监控
  - SignalSource    — OS 信号订阅，经 CancelSync 线程安全触发，
    reason=signal
  - TokenSource     — 观察外部令牌，触发时以 reason=manual 取消操作
  - AnyOf           — OR 组合：首个子源触发即胜出，记录胜者
  - AllOf           — AND 组合：子源触发只计数（代理令牌吸收），
    全部触发后以 reason=condition 取消，消息汇总各子源原因
*/
package source
