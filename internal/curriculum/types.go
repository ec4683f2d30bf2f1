package curriculum

import "fmt"

// ChartType selects the interactive chart shown with a topic.
type ChartType string

const (
	ChartNone               ChartType = "none"
	ChartNormalDistribution ChartType = "normal_distribution"
)

func (c ChartType) valid() bool {
	return c == ChartNone || c == ChartNormalDistribution
}

// Unit is one course unit loaded from YAML.
type Unit struct {
	Number     int      `yaml:"unit_number" json:"unitNumber"`
	Title      string   `yaml:"title" json:"title"`
	Duration   string   `yaml:"duration" json:"duration"`
	Prereqs    string   `yaml:"prereqs" json:"prereqs"`
	Objectives []string `yaml:"objectives" json:"objectives"`
	References string   `yaml:"references" json:"references"`
	Assessment string   `yaml:"assessment" json:"assessment"`
	Topics     []Topic  `yaml:"topics" json:"topics"`
}

// Topic is a sub-topic of a unit and the unit of completion.
type Topic struct {
	ID      string    `yaml:"id" json:"id"`
	Title   string    `yaml:"title" json:"title"`
	Content string    `yaml:"content" json:"content"`
	Chart   ChartType `yaml:"chart" json:"chart"`
}

// UnitCompletion counts completed topics in one unit.
type UnitCompletion struct {
	Unit      int     `json:"unit"`
	Title     string  `json:"title"`
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Ratio     float64 `json:"ratio"`
}

func (u Unit) String() string {
	return fmt.Sprintf("Unit %d: %s", u.Number, u.Title)
}
