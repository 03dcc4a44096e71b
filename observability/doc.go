// Copyright (c) Cancelable Authors.
// Licensed under the MIT License.

/*
Package observability 基于回调契约提供日志、指标与追踪接入。

# 概述

核心库自身不绑定任何后端；本包是消费回调接口的可观测性协作方：

  - AttachLogger        — zap 结构化生命周期/进度日志，支持速率限制
  - Collector           — prometheus.Collector，导出 registry 活跃/历史计数
  - CancellationCounter — 按取消原因计数的 prometheus 计数器
  - AttachTracer        — OpenTelemetry span：进入开 span，进度加事件，
    退出按终态标注

指标与追踪只依赖 API 层；exporter 的装配属于宿主应用。
*/
package observability
