package assigner

import (
	"time"

	"github.com/crillab/gophersat/solver"
)

type solveStatus int

const (
	solveSolved solveStatus = iota
	solveInfeasible
	solveTimedOut
)

// solveOutcome: 一次求解尝试的结果
type solveOutcome struct {
	status   solveStatus
	optimal  bool // 超时前拿到的可行解不保证最优
	model    []bool
	weight   int
	duration time.Duration
}

// solve 在给定的时间预算内求解模型
// gophersat 的 Optimal 在预算内收敛时返回 Sat（最优）或 Unsat（不可行）。
// Optimal 不保证响应 stop 信号，所以预算到点时不等它返回：
// 若已收到过中间模型则按可行但非最优收场，否则按超时处理，
// 由调用方决定是否加大预算重试
func (m *model) solve(budget time.Duration) *solveOutcome {
	pb := m.solverProblem()
	s := solver.New(pb)

	results := make(chan solver.Result)
	done := make(chan solver.Result, 1)
	stop := make(chan struct{})

	go func() {
		done <- s.Optimal(results, stop)
	}()

	start := time.Now()
	timer := time.NewTimer(budget)
	defer timer.Stop()

	var best *solver.Result
	var final solver.Result

	for {
		select {
		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			if res.Status == solver.Sat {
				r := res
				best = &r
			}
		case final = <-done:
			// Optimal 返回前会先关闭 results，这里把剩余的中间结果排空
			if results != nil {
				for res := range results {
					if res.Status == solver.Sat {
						r := res
						best = &r
					}
				}
			}
			return m.classify(final, best, time.Since(start))
		case <-timer.C:
			close(stop)
			// 被放弃的求解 goroutine 可能还会往 results 写中间结果，
			// 留一个排空者防止它永远阻塞
			go func() {
				if results != nil {
					for range results {
					}
				}
				<-done
			}()

			return m.budgetExpired(best, time.Since(start))
		}
	}
}

// budgetExpired 把预算耗尽时刻的状态折算成结果：
// 有中间模型按可行非最优收场，没有就是真超时
func (m *model) budgetExpired(best *solver.Result, elapsed time.Duration) *solveOutcome {
	outcome := &solveOutcome{duration: elapsed}
	if best != nil {
		outcome.status = solveSolved
		outcome.optimal = false
		outcome.model = m.extractModel(best.Model)
		outcome.weight = best.Weight
		return outcome
	}
	outcome.status = solveTimedOut
	return outcome
}

func (m *model) classify(final solver.Result, best *solver.Result, elapsed time.Duration) *solveOutcome {
	outcome := &solveOutcome{duration: elapsed}

	switch final.Status {
	case solver.Sat:
		outcome.status = solveSolved
		outcome.optimal = true
		outcome.model = m.extractModel(final.Model)
		outcome.weight = final.Weight
	case solver.Unsat:
		// Unsat 但拿到过中间模型说明优化已经收敛到不可再改进，
		// 最后一个模型就是最优解
		if best != nil {
			outcome.status = solveSolved
			outcome.optimal = true
			outcome.model = m.extractModel(best.Model)
			outcome.weight = best.Weight
			break
		}
		outcome.status = solveInfeasible
	default:
		if best != nil {
			// 预算内没有证明最优，但已有可行解
			outcome.status = solveSolved
			outcome.optimal = false
			outcome.model = m.extractModel(best.Model)
			outcome.weight = best.Weight
			break
		}
		outcome.status = solveTimedOut
	}

	return outcome
}

// extractModel 把求解器的模型映射回决策变量数组，含辅助变量
// 求解器按变量编号从 1 开始返回真值，这里对齐到从 0 开始的数组下标
func (m *model) extractModel(mm []bool) []bool {
	values := make([]bool, m.nextVar-1)
	for v := 1; v < m.nextVar; v++ {
		if v-1 < len(mm) {
			values[v-1] = mm[v-1]
		}
	}
	return values
}

// assigned 判断模型中教师 t 是否被安排到考场 e
func (m *model) assigned(values []bool, t, e int) bool {
	return values[m.assignVar(t, e)-1]
}
