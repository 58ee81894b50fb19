package domain

// Region is a geographic administrative unit whose prefecture coordinates
// serve as the forecast query point. Identity is the department code.
type Region struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
