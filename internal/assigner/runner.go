package assigner

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sysu-ecnc-dev/proctor-manager/backend/internal/domain"
)

// Sink: 分配成功后的持久化出口，由 repository 实现
// 重新分配不会原地更新旧结果，而是先全部置为非激活再插入新行
type Sink interface {
	DeactivateAssignments(sessionID int64) error
	SaveAssignments(assignments []*domain.Assignment) error
	UpdateRolloverCredit(teacherID int64, credit int32) error
}

// Options: 求解与松弛循环的运行参数
type Options struct {
	TimeBudget          time.Duration // 每次求解的预算
	ExtendedTimeBudget  time.Duration // 超时后重试一次所用的预算
	MaxRelaxationRounds int
	InitialBatchPercent int
}

func DefaultOptions() Options {
	return Options{
		TimeBudget:          10 * time.Second,
		ExtendedTimeBudget:  30 * time.Second,
		MaxRelaxationRounds: 15,
		InitialBatchPercent: 5,
	}
}

type Runner struct {
	src  Source
	sink Sink
	opts Options
}

// NewRunner 创建分配执行器，sink 为 nil 时只求解不落库
func NewRunner(src Source, sink Sink, opts Options) *Runner {
	return &Runner{
		src:  src,
		sink: sink,
		opts: opts,
	}
}

// ExecuteAssignment 异步执行一次完整的分配流程
// 返回的通道在达到终态后收到唯一一个结果；流程内部是严格串行的，
// 同一周期的并发执行需要由调用方（handler 的 redis 锁）保证互斥
func (r *Runner) ExecuteAssignment(sessionID int64, cfg Config) <-chan *Result {
	ch := make(chan *Result, 1)

	go func() {
		ch <- r.execute(sessionID, cfg)
	}()

	return ch
}

func (r *Runner) execute(sessionID int64, cfg Config) *Result {
	problem, err := LoadProblem(r.src, sessionID)
	if err != nil {
		slog.Error("无法构建分配问题实例", "sessionID", sessionID, "error", err)
		return &Result{Status: StatusError, Message: err.Error()}
	}

	// 容量预检：总配额连总需求都不够时，任何松弛都无济于事，
	// 直接返回不可行，一次求解尝试都不浪费
	var totalNeeded, totalCapacity int32
	for _, exam := range problem.Exams {
		totalNeeded += exam.RequiredSupervisors
	}
	for _, teacher := range problem.Teachers {
		totalCapacity += teacher.Quota
	}
	if totalCapacity < totalNeeded {
		deficit := totalNeeded - totalCapacity
		return &Result{
			Status:          StatusInfeasible,
			Message:         fmt.Sprintf("教师配额总量不足：需要 %d 场，配额合计 %d 场，缺口 %d 场", totalNeeded, totalCapacity, deficit),
			CapacityDeficit: deficit,
		}
	}

	meta := RunMeta{}
	relaxed := make(map[int]bool)

	// 严格求解
	m, outcome := r.attempt(problem, &cfg, relaxed, &meta)
	if outcome.status == solveSolved {
		return r.finalize(sessionID, m, outcome, meta, relaxed)
	}

	// 渐进松弛：从最不受保护的教师开始，成批豁免其不可用时段
	queue := relaxationQueue(problem)
	queueSize := len(queue)
	lastStatus := outcome.status
	warned := false

	round := 0
	for round < r.opts.MaxRelaxationRounds && len(queue) > 0 {
		round++

		batch := batchSize(queueSize, round, r.opts.InitialBatchPercent)
		if batch > len(queue) {
			batch = len(queue)
		}
		for _, t := range queue[:batch] {
			relaxed[t] = true
		}
		queue = queue[batch:]

		if !warned && len(relaxed)*2 > len(problem.Teachers) {
			// 松弛过半通常意味着时段拥挤或归属死锁等结构性矛盾，
			// 而不是单纯的人手紧张
			slog.Warn("被松弛的教师已超过半数，建议检查考试安排是否存在结构性冲突",
				"sessionID", sessionID, "relaxed", len(relaxed), "teachers", len(problem.Teachers))
			warned = true
		}

		slog.Info("进入松弛轮次", "sessionID", sessionID, "round", round, "relaxed", len(relaxed))

		m, outcome = r.attempt(problem, &cfg, relaxed, &meta)
		lastStatus = outcome.status
		if outcome.status == solveSolved {
			meta.RelaxationRounds = int32(round)
			meta.RelaxedTeachers = int32(len(relaxed))
			return r.finalize(sessionID, m, outcome, meta, relaxed)
		}
	}

	meta.RelaxationRounds = int32(round)
	meta.RelaxedTeachers = int32(len(relaxed))

	// 松弛耗尽仍然无解。最后一次尝试若是超时而非证明不可行，
	// 单独上报，提示运维加大时间预算或排查结构性原因
	if lastStatus == solveTimedOut {
		return &Result{
			Status:  StatusTimeout,
			Message: "求解在所有时间预算内均未收敛，无法判定可行性",
			Meta:    meta,
		}
	}

	return &Result{
		Status:  StatusInfeasible,
		Message: "松弛所有候选教师后仍然无解",
		Meta:    meta,
	}
}

// attempt 重建模型并求解一次；超时则加大预算重试一次，
// 仍未收敛时按不可行信号处理（是否继续松弛由调用方决定）
func (r *Runner) attempt(p *Problem, cfg *Config, relaxed map[int]bool, meta *RunMeta) (*model, *solveOutcome) {
	m := buildModel(p, cfg, relaxed)
	meta.HardConstraints = m.hardCount

	meta.SolveAttempts++
	outcome := m.solve(r.opts.TimeBudget)
	meta.SolveTimeMs += outcome.duration.Milliseconds()

	if outcome.status == solveTimedOut {
		slog.Warn("求解超时，使用扩展预算重试", "budget", r.opts.ExtendedTimeBudget)
		meta.SolveAttempts++
		outcome = m.solve(r.opts.ExtendedTimeBudget)
		meta.SolveTimeMs += outcome.duration.Milliseconds()
	}

	return m, outcome
}

// finalize 组装结果并落库
func (r *Runner) finalize(sessionID int64, m *model, outcome *solveOutcome, meta RunMeta, relaxed map[int]bool) *Result {
	meta.Optimal = outcome.optimal && len(relaxed) == 0

	result := buildResult(m, outcome.model, meta)
	if len(relaxed) > 0 {
		// 相对原始（未松弛）问题而言结果不再是最优解
		result.Message = fmt.Sprintf("监考分配成功（松弛了 %d 位教师的不可用时段）", len(relaxed))
	}

	if r.sink == nil {
		return result
	}

	if err := r.sink.DeactivateAssignments(sessionID); err != nil {
		slog.Error("无法作废旧的分配结果", "sessionID", sessionID, "error", err)
		return &Result{Status: StatusError, Message: err.Error(), Meta: meta}
	}
	if err := r.sink.SaveAssignments(assignmentsFromModel(m, outcome.model, sessionID)); err != nil {
		slog.Error("无法保存分配结果", "sessionID", sessionID, "error", err)
		return &Result{Status: StatusError, Message: err.Error(), Meta: meta}
	}
	for _, w := range result.Workloads {
		if err := r.sink.UpdateRolloverCredit(w.TeacherID, w.HonoredUnavailabilities); err != nil {
			slog.Error("无法更新顺延配额", "teacherID", w.TeacherID, "error", err)
			return &Result{Status: StatusError, Message: err.Error(), Meta: meta}
		}
	}

	return result
}

// relaxationQueue 构建松弛候选队列：所有声明过不可用时段的教师，
// 按优先级取负后升序排列，使优先级数值最大（最不受保护）的教师排在最前，
// 同优先级时可释放时段多的教师优先
func relaxationQueue(p *Problem) []int {
	queue := make([]int, 0)
	freed := make(map[int]int)

	for t := range p.Teachers {
		count := unavailableSlotCount(p, t)
		if count == 0 {
			continue
		}
		queue = append(queue, t)
		freed[t] = count
	}

	sort.SliceStable(queue, func(i, j int) bool {
		a, b := queue[i], queue[j]
		if p.Teachers[a].Priority != p.Teachers[b].Priority {
			return -p.Teachers[a].Priority < -p.Teachers[b].Priority
		}
		return freed[a] > freed[b]
	})

	return queue
}

func unavailableSlotCount(p *Problem, t int) int {
	count := 0
	for _, day := range p.Unavailable[t] {
		for _, refused := range day {
			if refused {
				count++
			}
		}
	}
	return count
}

// batchSize 随轮次增长的批量：前 3 轮按初始百分比，
// 第 4 轮起翻倍，第 8 轮起再翻倍，加快困难实例的收敛
func batchSize(queueSize, round, initialPercent int) int {
	percent := initialPercent
	if round > 7 {
		percent = initialPercent * 4
	} else if round > 3 {
		percent = initialPercent * 2
	}

	size := queueSize * percent / 100
	if size < 1 {
		size = 1
	}
	return size
}
