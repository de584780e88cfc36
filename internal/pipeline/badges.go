package pipeline

// Badge names.
const (
	BadgeFirstSave        = "First Save"
	BadgeCostCrusher      = "Cost Crusher"
	BadgeCloudGuardian    = "Cloud Guardian"
	BadgeOptimizationHero = "Optimization Hero"
	BadgeBigSaver         = "Big Saver"
	BadgeStreakMaster     = "Streak Master"
)

// Badge couples a name with bonus points and the predicate that unlocks it.
// Streak Master has no predicate here: it needs login history the pipeline
// never sees, so only external callers award it.
type Badge struct {
	Name        string
	Description string
	Points      int
	Unlocked    func(p badgeProgress) bool
}

// badgeProgress is the cumulative view badges are judged against: prior user
// stats folded together with the current run.
type badgeProgress struct {
	AdoptedCount     int
	TotalSavings     float64
	MaxSingleSavings float64
	HealthScore      int
}

// BadgeRegistry lists every badge in award order. Evaluation is set-based:
// a badge the user already holds is never awarded again.
var BadgeRegistry = []Badge{
	{
		Name:        BadgeFirstSave,
		Description: "Adopt your first cost recommendation",
		Points:      50,
		Unlocked:    func(p badgeProgress) bool { return p.AdoptedCount >= 1 },
	},
	{
		Name:        BadgeCostCrusher,
		Description: "Save more than 1000 in total",
		Points:      200,
		Unlocked:    func(p badgeProgress) bool { return p.TotalSavings > 1000 },
	},
	{
		Name:        BadgeCloudGuardian,
		Description: "Reach a subscription health score of 80 or better",
		Points:      300,
		Unlocked:    func(p badgeProgress) bool { return p.HealthScore >= 80 },
	},
	{
		Name:        BadgeOptimizationHero,
		Description: "Adopt ten recommendations",
		Points:      500,
		Unlocked:    func(p badgeProgress) bool { return p.AdoptedCount >= 10 },
	},
	{
		Name:        BadgeBigSaver,
		Description: "Adopt a single recommendation saving more than 500",
		Points:      250,
		Unlocked:    func(p badgeProgress) bool { return p.MaxSingleSavings > 500 },
	},
	{
		Name:        BadgeStreakMaster,
		Description: "Run analyses seven days in a row",
		Points:      150,
		Unlocked:    nil,
	},
}

// BadgePoints returns the bonus for a badge name, 0 if unknown.
func BadgePoints(name string) int {
	for _, b := range BadgeRegistry {
		if b.Name == name {
			return b.Points
		}
	}
	return 0
}

// evaluateBadges returns newly unlocked badges given progress and the set
// already held.
func evaluateBadges(p badgeProgress, held []string) []string {
	owned := make(map[string]bool, len(held))
	for _, name := range held {
		owned[name] = true
	}
	var unlocked []string
	for _, b := range BadgeRegistry {
		if b.Unlocked == nil || owned[b.Name] {
			continue
		}
		if b.Unlocked(p) {
			unlocked = append(unlocked, b.Name)
		}
	}
	return unlocked
}
