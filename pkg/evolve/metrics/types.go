package metrics

import "time"

// Category identifies a tracked click target on the page.
type Category string

const (
	CategoryProjects    Category = "projects"
	CategoryContact     Category = "contact"
	CategoryAbout       Category = "about"
	CategoryThemeToggle Category = "themeToggle"
	CategorySocial      Category = "social"
	CategoryCTA         Category = "cta"
	CategoryNavigation  Category = "navigation"
)

// Categories is the canonical category order. Iteration over snapshot
// counters always follows this slice, never Go map order.
var Categories = []Category{
	CategoryProjects,
	CategoryContact,
	CategoryAbout,
	CategoryThemeToggle,
	CategorySocial,
	CategoryCTA,
	CategoryNavigation,
}

// Section identifies a page section tracked for dwell time and views.
type Section string

const (
	SectionHome     Section = "home"
	SectionAbout    Section = "about"
	SectionProjects Section = "projects"
	SectionContact  Section = "contact"
)

// Sections is the canonical section order, used for deterministic
// tie-breaking in MostDwelledSection.
var Sections = []Section{
	SectionHome,
	SectionAbout,
	SectionProjects,
	SectionContact,
}

// Theme is the visitor's color scheme preference.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Interaction types recorded in the interaction log.
const (
	InteractionClick       = "click"
	InteractionScroll      = "scroll"
	InteractionSectionView = "section_view"
	InteractionThemeChange = "theme_change"
	InteractionVisit       = "visit"
)

// MaxInteractionLog bounds the interaction log; the oldest entries are
// evicted first once the cap is reached.
const MaxInteractionLog = 1000

// Interaction is a single entry in the interaction log.
type Interaction struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Snapshot is the durable metrics aggregate. Tracker hands out deep
// copies only; the authoritative state never escapes.
type Snapshot struct {
	ClickCounts        map[Category]int  `json:"click_counts"`
	ScrollDepthPercent int               `json:"scroll_depth_percent"`
	SectionDwellMillis map[Section]int64 `json:"section_dwell_ms"`
	SectionViewCounts  map[Section]int   `json:"section_view_counts"`
	ThemePreference    Theme             `json:"theme_preference"`
	LastVisitDate      string            `json:"last_visit_date,omitempty"`
	VisitCount         int               `json:"visit_count"`
	InteractionLog     []Interaction     `json:"interaction_log"`
}

// NewSnapshot returns a zeroed snapshot with every fixed category and
// section key present.
func NewSnapshot() Snapshot {
	s := Snapshot{
		ClickCounts:        make(map[Category]int, len(Categories)),
		SectionDwellMillis: make(map[Section]int64, len(Sections)),
		SectionViewCounts:  make(map[Section]int, len(Sections)),
		ThemePreference:    ThemeLight,
		InteractionLog:     []Interaction{},
	}
	for _, c := range Categories {
		s.ClickCounts[c] = 0
	}
	for _, sec := range Sections {
		s.SectionDwellMillis[sec] = 0
		s.SectionViewCounts[sec] = 0
	}
	return s
}

// normalize repairs a snapshot loaded from persistence: missing keys are
// zero-filled, unknown keys dropped, bounds re-enforced. Malformed data
// is degraded, never rejected.
func (s *Snapshot) normalize() {
	fixed := NewSnapshot()
	for _, c := range Categories {
		if v, ok := s.ClickCounts[c]; ok && v > 0 {
			fixed.ClickCounts[c] = v
		}
	}
	for _, sec := range Sections {
		if v, ok := s.SectionDwellMillis[sec]; ok && v > 0 {
			fixed.SectionDwellMillis[sec] = v
		}
		if v, ok := s.SectionViewCounts[sec]; ok && v > 0 {
			fixed.SectionViewCounts[sec] = v
		}
	}
	fixed.ScrollDepthPercent = clampPercent(s.ScrollDepthPercent)
	if s.ThemePreference == ThemeDark {
		fixed.ThemePreference = ThemeDark
	}
	fixed.LastVisitDate = s.LastVisitDate
	if s.VisitCount > 0 {
		fixed.VisitCount = s.VisitCount
	}
	fixed.InteractionLog = s.InteractionLog
	if fixed.InteractionLog == nil {
		fixed.InteractionLog = []Interaction{}
	}
	if len(fixed.InteractionLog) > MaxInteractionLog {
		fixed.InteractionLog = fixed.InteractionLog[len(fixed.InteractionLog)-MaxInteractionLog:]
	}
	*s = fixed
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.ClickCounts = make(map[Category]int, len(s.ClickCounts))
	for k, v := range s.ClickCounts {
		out.ClickCounts[k] = v
	}
	out.SectionDwellMillis = make(map[Section]int64, len(s.SectionDwellMillis))
	for k, v := range s.SectionDwellMillis {
		out.SectionDwellMillis[k] = v
	}
	out.SectionViewCounts = make(map[Section]int, len(s.SectionViewCounts))
	for k, v := range s.SectionViewCounts {
		out.SectionViewCounts[k] = v
	}
	out.InteractionLog = make([]Interaction, len(s.InteractionLog))
	for i, entry := range s.InteractionLog {
		copied := entry
		if entry.Metadata != nil {
			copied.Metadata = make(map[string]string, len(entry.Metadata))
			for k, v := range entry.Metadata {
				copied.Metadata[k] = v
			}
		}
		out.InteractionLog[i] = copied
	}
	return out
}

// TotalClicks sums every category counter in canonical order.
func (s Snapshot) TotalClicks() int {
	total := 0
	for _, c := range Categories {
		total += s.ClickCounts[c]
	}
	return total
}

// TotalDwellMillis sums dwell time across all sections.
func (s Snapshot) TotalDwellMillis() int64 {
	var total int64
	for _, sec := range Sections {
		total += s.SectionDwellMillis[sec]
	}
	return total
}

// EngagementScore derives the weighted engagement scalar:
// 0.3 x total clicks + 0.4 x total dwell seconds + 0.3 x scroll depth.
// Recomputed on demand, never cached.
func (s Snapshot) EngagementScore() float64 {
	dwellSeconds := float64(s.TotalDwellMillis()) / 1000.0
	return 0.3*float64(s.TotalClicks()) + 0.4*dwellSeconds + 0.3*float64(s.ScrollDepthPercent)
}

// MostDwelledSection returns the section with the highest accumulated
// dwell time. Ties resolve to the earlier section in canonical order.
func (s Snapshot) MostDwelledSection() Section {
	best := Sections[0]
	bestDwell := s.SectionDwellMillis[best]
	for _, sec := range Sections[1:] {
		if s.SectionDwellMillis[sec] > bestDwell {
			best = sec
			bestDwell = s.SectionDwellMillis[sec]
		}
	}
	return best
}

func validCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

func validSection(sec Section) bool {
	for _, known := range Sections {
		if sec == known {
			return true
		}
	}
	return false
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
