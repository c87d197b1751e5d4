package planning

// Policy holds the tunable constants of the plan engine.
type Policy struct {
	// PassThreshold is the minimum score fraction that passes a day.
	PassThreshold float64
	// DefaultPoints is the per-question weight used when an answer carries none.
	DefaultPoints float64
	// StudySkillsPerDay is how many fresh skills each weekday study day receives.
	StudySkillsPerDay int
	// WeekendSkillsPerDay caps the skills assigned to one review day.
	WeekendSkillsPerDay int
	// AdaptiveSkillCount is how many lowest-mastery skills are cycled over days 22-30.
	AdaptiveSkillCount int
	// MinCompletedDays gates regeneration.
	MinCompletedDays int
	// KeepVersions is the number of most recent plan versions kept on disk.
	KeepVersions int
}

func DefaultPolicy() Policy {
	return Policy{
		PassThreshold:       0.70,
		DefaultPoints:       5,
		StudySkillsPerDay:   2,
		WeekendSkillsPerDay: 5,
		AdaptiveSkillCount:  9,
		MinCompletedDays:    5,
		KeepVersions:        3,
	}
}

// WithDefaults fills zero fields from DefaultPolicy.
func (p Policy) WithDefaults() Policy {
	d := DefaultPolicy()
	if p.PassThreshold <= 0 || p.PassThreshold > 1 {
		p.PassThreshold = d.PassThreshold
	}
	if p.DefaultPoints <= 0 {
		p.DefaultPoints = d.DefaultPoints
	}
	if p.StudySkillsPerDay <= 0 {
		p.StudySkillsPerDay = d.StudySkillsPerDay
	}
	if p.WeekendSkillsPerDay <= 0 {
		p.WeekendSkillsPerDay = d.WeekendSkillsPerDay
	}
	if p.AdaptiveSkillCount <= 0 {
		p.AdaptiveSkillCount = d.AdaptiveSkillCount
	}
	if p.MinCompletedDays <= 0 {
		p.MinCompletedDays = d.MinCompletedDays
	}
	if p.KeepVersions <= 0 {
		p.KeepVersions = d.KeepVersions
	}
	return p
}
