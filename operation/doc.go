// Copyright (c) Cancelable Authors.
// Licensed under the MIT License.

/*
Package operation 提供作用域化的可取消操作。

# 概述

Operation 把一段任务区域包进取消作用域：持有令牌、激活/停用触发源、
发布进度、支持屏蔽（shield）、包装流与可调用对象，并维护父子层级以便
取消自动向下传播。进入/退出生命周期保证资源有序释放：退出时按逆序
停用所有源、取消并等待存活子操作（受 shutdown budget 约束）、解析
终态、触发回调、从 registry 注销。

# 生命周期

	op, _ := operation.NewWithTimeout(5*time.Second, operation.WithName("fetch"))
	err := op.Run(ctx, func(ctx context.Context) error {
	    // 任务体；ctx 在令牌触发后于下一个挂起点传递取消
	    return op.ReportProgress(ctx, "halfway", nil)
	})

Enter 返回的派生 context 携带环境引用（FromContext / Current），
取消以 context cause 形式携带 *types.CancellationError。

# 不变式

  - 操作以 Cancelled 退出，当且仅当其令牌在存活期内被触发
  - 每个退出路径上，所有已激活的源先于返回被停用
  - 父操作取消时，子操作先于父终态对外可见前被取消
  - registry 注销先于退出处理结束

# 流包装

Stream[T] 为拉式惰性序列（FromSlice / FromChannel / FromSeq）；
Guard 在每次拉取前检查令牌、可选缓冲部分结果、按间隔上报进度；
GuardChunks 以块为粒度做取消检查。
*/
package operation
