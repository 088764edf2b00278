package assigner

import (
	"log/slog"
	"sort"

	"github.com/crillab/gophersat/solver"
)

// model: 一次求解尝试的布尔决策模型
// 决策变量 assign[t][e] 对应文字 t*len(exams)+e+1，辅助变量在其后分配；
// 每一轮松弛都会重建一个全新的 model，变量不跨轮复用
type model struct {
	problem *Problem
	cfg     *Config
	relaxed map[int]bool // 被松弛的教师下标，其不可用时段不再作为硬约束

	numExams  int
	numAssign int
	nextVar   int

	constrs   []solver.PBConstr
	hardCount int32
	cost      map[int]int // 文字 -> 权重，负权重表示奖励

	slotExams map[examKey][]int // 每个时段包含的考场下标
}

func buildModel(p *Problem, cfg *Config, relaxed map[int]bool) *model {
	m := &model{
		problem:   p,
		cfg:       cfg,
		relaxed:   relaxed,
		numExams:  len(p.Exams),
		numAssign: len(p.Teachers) * len(p.Exams),
		cost:      make(map[int]int),
		slotExams: make(map[examKey][]int),
	}
	m.nextVar = m.numAssign + 1

	for e, exam := range p.Exams {
		key := examKey{day: exam.Day, slot: exam.Slot}
		m.slotExams[key] = append(m.slotExams[key], e)
	}

	m.addCoverage()
	m.addOwnership()
	m.addUnavailability()
	m.addQuota()
	m.addTimeConflict()
	m.addNoGaps()
	m.addEqualByGrade()
	m.addOwnerPresence()
	m.addScarcityTerms()
	m.addRelaxationPenalties()

	return m
}

func (m *model) assignVar(t, e int) int {
	return t*m.numExams + e + 1
}

func (m *model) newVar() int {
	v := m.nextVar
	m.nextVar++
	return v
}

func (m *model) addHard(constrs ...solver.PBConstr) {
	m.constrs = append(m.constrs, constrs...)
	m.hardCount += int32(len(constrs))
}

func ones(n int) []int {
	w := make([]int, n)
	for i := range w {
		w[i] = 1
	}
	return w
}

// teacherLits 返回教师 t 在所有考场上的决策文字
func (m *model) teacherLits(t int) []int {
	lits := make([]int, m.numExams)
	for e := 0; e < m.numExams; e++ {
		lits[e] = m.assignVar(t, e)
	}
	return lits
}

// teacherSlotLits 返回教师 t 在某个时段内所有考场上的决策文字
func (m *model) teacherSlotLits(t int, day, slot int32) []int {
	exams := m.slotExams[examKey{day: day, slot: slot}]
	lits := make([]int, len(exams))
	for i, e := range exams {
		lits[i] = m.assignVar(t, e)
	}
	return lits
}

// 覆盖约束：每个考场的监考人数必须恰好等于要求人数
// 实践中永远保持 hard，关闭它得到的结果没有意义
func (m *model) addCoverage() {
	if m.cfg.Coverage == ModeDisabled {
		return
	}

	for e, exam := range m.problem.Exams {
		lits := make([]int, len(m.problem.Teachers))
		for t := range m.problem.Teachers {
			lits[t] = m.assignVar(t, e)
		}
		m.addHard(solver.Eq(lits, ones(len(lits)), int(exam.RequiredSupervisors))...)
	}
}

// 归属排除：出题教师不能监考自己的考场
func (m *model) addOwnership() {
	if m.cfg.Ownership != ModeHard {
		return
	}

	for e, exam := range m.problem.Exams {
		for _, ownerID := range exam.OwnerIDs {
			t := m.problem.TeacherIndex(ownerID)
			if t < 0 {
				continue
			}
			m.addHard(solver.PropClause(-m.assignVar(t, e)))
		}
	}
}

// 不可用时段：未被松弛的教师在其拒绝的时段强制为 0
// 被松弛的教师改由目标函数中的罚分处理
func (m *model) addUnavailability() {
	if m.cfg.Unavailability != ModeHard {
		return
	}

	for t := range m.problem.Teachers {
		if m.relaxed[t] {
			continue
		}
		for e := 0; e < m.numExams; e++ {
			if m.problem.IsUnavailable(t, e) {
				m.addHard(solver.PropClause(-m.assignVar(t, e)))
			}
		}
	}
}

// 配额约束：每位教师的监考总场数不超过本周期配额
func (m *model) addQuota() {
	if m.cfg.QuotaLimit != ModeHard {
		return
	}

	for t, teacher := range m.problem.Teachers {
		m.addHard(solver.LtEq(m.teacherLits(t), ones(m.numExams), int(teacher.Quota)))
	}
}

// 时间冲突：同一时段内每位教师至多监考一个考场
func (m *model) addTimeConflict() {
	if m.cfg.TimeConflict != ModeHard {
		return
	}

	for t := range m.problem.Teachers {
		for _, exams := range m.slotExams {
			if len(exams) < 2 {
				continue
			}
			lits := make([]int, len(exams))
			for i, e := range exams {
				lits[i] = m.assignVar(t, e)
			}
			m.addHard(solver.AtMost(lits, 1))
		}
	}
}

// 连排约束：禁止教师一天的监考安排出现「上了又空再上」的空档
// 对每个 (教师, 日) 引入 works 辅助变量，与该时段的分配和双向联动，
// 再对占用时段的每个连续三元组约束 works[start]+works[end]-works[middle] <= 1
func (m *model) addNoGaps() {
	if m.cfg.NoGaps == ModeDisabled {
		return
	}

	for t := range m.problem.Teachers {
		for day := int32(1); day <= m.problem.Session.NumDays; day++ {
			if m.cfg.ExemptUnavailableFromGaps && m.teacherUnavailableOnDay(t, day) {
				// 当天本来就有不可用时段，空档不可避免，不再约束
				continue
			}

			// 当天有候选考场的时段，按时间先后排列
			occupied := make([]int32, 0)
			for slot := int32(1); slot <= m.problem.Session.SlotsPerDay; slot++ {
				if len(m.slotExams[examKey{day: day, slot: slot}]) > 0 {
					occupied = append(occupied, slot)
				}
			}
			if len(occupied) < 3 {
				continue
			}

			works := make(map[int32]int, len(occupied))
			for _, slot := range occupied {
				works[slot] = m.linkWorksVar(t, day, slot)
			}

			for i := 0; i+2 < len(occupied); i++ {
				start, middle, end := works[occupied[i]], works[occupied[i+1]], works[occupied[i+2]]

				switch m.cfg.NoGaps {
				case ModeHard:
					m.addHard(solver.PropClause(-start, -end, middle))
				case ModeSoft:
					// hasGap 恰好在 start 和 end 工作而 middle 空闲时取 1，计入罚分
					hasGap := m.newVar()
					m.addHard(solver.GtEq([]int{hasGap, -start, -end, middle}, ones(4), 1))
					m.addHard(solver.PropClause(-hasGap, start))
					m.addHard(solver.PropClause(-hasGap, end))
					m.addHard(solver.PropClause(-hasGap, -middle))
					m.cost[hasGap] += m.cfg.GapPenalty
				}
			}
		}
	}
}

// linkWorksVar 分配一个 works 变量并与该时段的分配和联动：
// sum >= works 且 sum <= works * 考场数，使 works=1 当且仅当该时段有监考任务
func (m *model) linkWorksVar(t int, day, slot int32) int {
	w := m.newVar()
	lits := m.teacherSlotLits(t, day, slot)

	lower := append(append([]int{}, lits...), -w)
	m.addHard(solver.GtEq(lower, ones(len(lower)), 1))

	upper := make([]int, 0, len(lits)+1)
	weights := make([]int, 0, len(lits)+1)
	upper = append(upper, w)
	weights = append(weights, len(lits))
	for _, lit := range lits {
		upper = append(upper, -lit)
		weights = append(weights, 1)
	}
	m.addHard(solver.GtEq(upper, weights, len(lits)))

	return w
}

func (m *model) teacherUnavailableOnDay(t int, day int32) bool {
	for slot := int32(0); slot < m.problem.Session.SlotsPerDay; slot++ {
		if m.problem.Unavailable[t][day-1][slot] {
			return true
		}
	}
	return false
}

// 同职称均衡：同一职称组内，每位教师的总场数必须等于基准教师的总场数
// 加上各自配额相对组内基准配额的偏差，消除无法解释的负担差异
func (m *model) addEqualByGrade() {
	if m.cfg.EqualByGrade != ModeHard {
		return
	}

	groups := make(map[string][]int)
	for t, teacher := range m.problem.Teachers {
		groups[teacher.GradeCode] = append(groups[teacher.GradeCode], t)
	}

	grades := make([]string, 0, len(groups))
	for grade := range groups {
		grades = append(grades, grade)
	}
	sort.Strings(grades)

	for _, grade := range grades {
		members := groups[grade]
		if len(members) < 2 {
			continue
		}

		// 组内出现次数最多的配额作为基准
		quotaCount := make(map[int32]int)
		for _, t := range members {
			quotaCount[m.problem.Teachers[t].Quota]++
		}
		baseline := m.problem.Teachers[members[0]].Quota
		for _, t := range members {
			q := m.problem.Teachers[t].Quota
			if quotaCount[q] > quotaCount[baseline] {
				baseline = q
			}
		}

		reference := -1
		for _, t := range members {
			if m.problem.Teachers[t].Quota == baseline {
				reference = t
				break
			}
		}

		refLits := m.teacherLits(reference)
		for _, t := range members {
			if t == reference {
				continue
			}

			offset := int(m.problem.Teachers[t].Quota - baseline)
			rhs := offset + m.numExams
			if rhs < 0 || rhs > 2*m.numExams {
				// 配额偏差超出了考场总数能表达的范围，属于数据错误
				slog.Warn("配额偏差超出可行范围，跳过该均衡约束",
					"grade", grade, "teacherID", m.problem.Teachers[t].ID, "offset", offset)
				continue
			}

			lits := append([]int{}, m.teacherLits(t)...)
			for _, lit := range refLits {
				lits = append(lits, -lit)
			}
			m.addHard(solver.Eq(lits, ones(len(lits)), rhs)...)
		}
	}
}

// 出题教师留守：某时段有多个考场时，鼓励（或强制）该时段某个考场的
// 出题教师去监考同时段的其他考场，方便考生就近提问
func (m *model) addOwnerPresence() {
	if m.cfg.OwnerPresence == ModeDisabled {
		return
	}

	for key, exams := range m.slotExams {
		if len(exams) < 2 {
			continue
		}

		pairs := make([]int, 0)
		for _, e := range exams {
			for _, ownerID := range m.problem.Exams[e].OwnerIDs {
				t := m.problem.TeacherIndex(ownerID)
				if t < 0 {
					continue
				}
				if m.cfg.Unavailability == ModeHard && !m.relaxed[t] && m.problem.Unavailable[t][key.day-1][key.slot-1] {
					// 该时段对这位教师是硬性 0，不构成有效机会
					continue
				}
				for _, other := range exams {
					if other == e || m.isOwner(t, other) {
						continue
					}
					pairs = append(pairs, m.assignVar(t, other))
				}
			}
		}
		if len(pairs) == 0 {
			continue
		}

		switch m.cfg.OwnerPresence {
		case ModeHard:
			m.addHard(solver.PropClause(pairs...))
		case ModeSoft:
			for _, lit := range pairs {
				m.cost[lit] -= m.cfg.OwnerPresenceBonus
			}
		}
	}
}

func (m *model) isOwner(t int, e int) bool {
	teacherID := m.problem.Teachers[t].ID
	for _, ownerID := range m.problem.Exams[e].OwnerIDs {
		if ownerID == teacherID {
			return true
		}
	}
	return false
}

// 稀缺度引导：可用教师越少的时段罚分越高，
// 引导求解器在有替代方案时不把名额浪费在紧张时段上
func (m *model) addScarcityTerms() {
	if m.cfg.ConflictPenalty <= 0 {
		return
	}

	for e, exam := range m.problem.Exams {
		scarcity := 0
		for t := range m.problem.Teachers {
			if !m.relaxed[t] && m.problem.Unavailable[t][exam.Day-1][exam.Slot-1] {
				scarcity++
			}
		}
		if scarcity == 0 {
			continue
		}
		for t := range m.problem.Teachers {
			m.cost[m.assignVar(t, e)] += scarcity * m.cfg.ConflictPenalty
		}
	}
}

// 松弛罚分：被松弛的教师若真的被排进其拒绝的时段，付出高额罚分，
// 使求解器只在别无选择时才占用这些时段
func (m *model) addRelaxationPenalties() {
	for t := range m.relaxed {
		if !m.relaxed[t] {
			continue
		}
		for e := 0; e < m.numExams; e++ {
			if m.problem.IsUnavailable(t, e) {
				m.cost[m.assignVar(t, e)] += m.cfg.UnavailabilityPenalty
			}
		}
	}
}

// solverProblem 把约束和目标函数交给 gophersat
// 负权重通过翻转文字转成正权重，常数项不影响最优解
func (m *model) solverProblem() *solver.Problem {
	pb := solver.ParsePBConstrs(m.constrs)

	vars := make([]int, 0, len(m.cost))
	for v := range m.cost {
		vars = append(vars, v)
	}
	sort.Ints(vars)

	lits := make([]solver.Lit, 0, len(vars))
	weights := make([]int, 0, len(vars))
	for _, v := range vars {
		w := m.cost[v]
		if w == 0 {
			continue
		}
		if w < 0 {
			v, w = -v, -w
		}
		lits = append(lits, solver.IntToLit(int32(v)))
		weights = append(weights, w)
	}

	if len(lits) > 0 {
		pb.SetCostFunc(lits, weights)
	}

	return pb
}
