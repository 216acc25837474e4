package model

// GroundingSource represents a citation returned alongside a grounded answer
type GroundingSource struct {
	Title    string   `json:"title"`    // Citation title as reported by the backend (or page title after validation)
	URI      string   `json:"uri"`      // Citation URI, never empty
	Category Category `json:"category"` // Derived record category
}

// Category classifies what kind of record a source points at
type Category string

const (
	CategoryCensus    Category = "census"    // Census and population schedules
	CategoryTax       Category = "tax"       // Tax rolls, assessments, levies
	CategoryNewspaper Category = "newspaper" // Newspapers, gazettes, periodicals
	CategoryMap       Category = "map"       // Maps, plats, surveys, map services
	CategoryLegal     Category = "legal"     // Deeds, probate, court and registry records
	CategoryWeb       Category = "web"       // Anything else
)

// Categories lists every category in classifier priority order, web last
func Categories() []Category {
	return []Category{
		CategoryCensus,
		CategoryTax,
		CategoryNewspaper,
		CategoryMap,
		CategoryLegal,
		CategoryWeb,
	}
}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// SourceCheck contains the result of checking a single source URI
type SourceCheck struct {
	URI           string `json:"uri"`
	IsAccessible  bool   `json:"is_accessible"`
	StatusCode    int    `json:"status_code,omitempty"`
	IsDead        bool   `json:"is_dead"`                  // 404, 410 or unreachable
	BlockedRobots bool   `json:"blocked_by_robots"`        // robots.txt disallows our agent
	RedirectURL   string `json:"redirect_url,omitempty"`   // Final URL when redirected
	PageTitle     string `json:"page_title,omitempty"`     // <title> when it was read
	Error         string `json:"error,omitempty"`
}
