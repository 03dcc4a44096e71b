// Copyright (c) Cancelable Authors.
// Licensed under the MIT License.

/*
Package registry 提供进程级操作目录。

# 概述

Registry 跟踪所有存活操作，支持查找、过滤枚举、模式匹配批量取消，
并以有界环形缓冲保留最近完成的操作供历史查询。不变式：每个已进入
且未退出、标记全局注册的操作在活跃表中恰好出现一次；退出的操作移入
历史并按上限裁剪。

# 主要能力

  - Register / Unregister — 重复 ID 快速失败；未知 ID 注销为空操作
  - Get / Lookup / List   — Get 返回存活操作本身，Lookup / List 返回
    独立快照；Filter 支持状态、父 ID、
    shell 风格名称通配、最小/最大存活时长
  - CancelOperation / CancelAll — 单个与并发批量取消（errgroup）
  - History / CleanupCompleted  — 历史查询与按时长裁剪
  - Clear — 仅测试用，清空且不取消
  - Default — 进程级单例（懒创建）；New 提供测试隔离用的独立实例

所有变更经内部互斥锁串行化；返回给调用方的视图均为快照副本。
*/
package registry
