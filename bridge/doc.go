// Copyright (c) Cancelable Authors.
// Licensed under the MIT License.

/*
Package bridge 提供线程与异步运行时之间的双向桥接。

# 概述

bridge 允许任意 goroutine（包括信号处理上下文）把回调调度到一个固定的
工作 goroutine 上执行，等价于事件循环的 call_soon_threadsafe；反向则通过
RunInThread 把阻塞工作移出调用方，并在等待点保持可取消。

# 核心能力

  - Bridge.CallSoon — 任意线程安全入队；启动前的任务排队，启动时补投
  - Bridge.Run      — 在调用方 goroutine 上消费任务直到 ctx 取消
  - RunInThread     — 泛型阻塞工作卸载，ctx 取消时立即返回
  - Default         — 进程级单例（懒创建），信号源默认使用

队列容量有界（默认 1000），满载丢弃并记录告警。
*/
package bridge
