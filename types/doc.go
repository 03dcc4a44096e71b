// Copyright (c) Cancelable Authors.
// Licensed under the MIT License.

/*
Package types 提供 cancelable 库的全局共享类型定义。

# 概述

types 是库最底层的公共包，不依赖任何内部包，为 token、source、operation、
registry 等上层模块提供统一的类型契约。所有跨包共享的枚举、上下文结构和
错误类型均定义于此，以避免循环依赖。

# 核心类型

  - CancellationReason — 取消原因闭合枚举（timeout / manual / signal /
    condition / parent / error）
  - OperationStatus    — 操作状态闭合枚举（pending / running / completed /
    cancelled / failed / shielded），含合法状态迁移表
  - OperationContext   — 操作身份与可观测状态（ID、时间戳、取消原因、
    metadata、partial result），并发安全
  - Snapshot           — OperationContext 的不可变副本，registry 查询返回值
  - CancellationError  — 域取消错误，Unwrap 到 context.Canceled

# 主要能力

  - 按原因构造取消错误：NewTimeoutError / NewManualError / NewSignalError 等
  - 错误判定：IsCancellation / ReasonOf
  - 结构化日志：OperationContext.LogFields 返回 zap 字段
*/
package types
