package model

import "fmt"

// Category is the closed set of event/task categories. It drives both
// colour selection in the UI and category filtering.
type Category uint8

const (
	CategoryOther Category = iota
	CategorySchool
	CategoryHomework
	CategoryStudying
	CategoryExtracurriculars
	CategoryWork
)

var categoryNames = [...]string{
	CategoryOther:            "Other",
	CategorySchool:           "School",
	CategoryHomework:         "Homework",
	CategoryStudying:         "Studying",
	CategoryExtracurriculars: "Extracurriculars",
	CategoryWork:             "Work",
}

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategorySchool,
		CategoryHomework,
		CategoryStudying,
		CategoryExtracurriculars,
		CategoryWork,
		CategoryOther,
	}
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// ParseCategory resolves a category by its display name.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return CategoryOther, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

func (c Category) MarshalText() ([]byte, error) {
	if int(c) >= len(categoryNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Category) UnmarshalText(b []byte) error {
	parsed, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
