// Copyright (c) Cancelable Authors.
// Licensed under the MIT License.

/*
Package token 提供一次性、线程安全的取消令牌。

# 概述

Token 是整个取消体系的原子信号：原子布尔 + 等待通道 + 回调列表，
携带取消原因与消息。一旦触发即保持触发，重复取消是幂等空操作。

# 核心能力

  - Cancel     — 一次性转换，唤醒等待者，按注册顺序串行执行回调
  - CancelSync — 任意线程可调用；标志与通道立即更新，回调在绑定的 bridge
    运行时经其调度，否则内联执行
  - Check      — 同步观测点，返回按原因标记的域取消错误
  - Wait/Done  — 异步等待取消
  - RegisterCallback — 已取消时立即补触发，返回幂等移除函数
  - LinkedToken — 任一父令牌触发即触发，记录来源；触发后释放父注册
    以打破引用环

状态转换由互斥锁保护，回调在锁外执行，单个回调失败不影响其余回调。
*/
package token
