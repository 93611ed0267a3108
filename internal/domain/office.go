package domain

import "time"

// Office is a branch through which assignments are routed.
type Office struct {
	ID        string
	Name      string
	AreaRefs  []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ServicesArea reports whether the office covers the given service area.
// An empty area is serviced by every office.
func (o *Office) ServicesArea(areaRef string) bool {
	if areaRef == "" {
		return true
	}
	for _, a := range o.AreaRefs {
		if a == areaRef {
			return true
		}
	}
	return false
}
