package model

import (
	"math"
	"strings"
)

// Category is the topic bucket a voting event is filed under
type Category string

const (
	CategoryEconomy       Category = "Economy"
	CategoryValues        Category = "Values"
	CategoryEnvironment   Category = "Environment"
	CategoryRegional      Category = "Regional"
	CategoryInternational Category = "International"
	CategorySecurity      Category = "Security"
	CategoryOther         Category = "Other" // Not an axis, never scored
)

// AxisCount is the number of ideological axes in a profile
const AxisCount = 6

// Axis indexes one of the six ideological dimensions
type Axis int

const (
	AxisEconomy Axis = iota
	AxisValues
	AxisEnvironment
	AxisRegional
	AxisInternational
	AxisSecurity
)

// Axes lists every axis in enumeration order. The order is also the tie-break
// order wherever categories compete (topic ownership).
var Axes = [AxisCount]Axis{
	AxisEconomy,
	AxisValues,
	AxisEnvironment,
	AxisRegional,
	AxisInternational,
	AxisSecurity,
}

var axisCategories = [AxisCount]Category{
	CategoryEconomy,
	CategoryValues,
	CategoryEnvironment,
	CategoryRegional,
	CategoryInternational,
	CategorySecurity,
}

// Category returns the category name for the axis
func (a Axis) Category() Category {
	if a < 0 || int(a) >= AxisCount {
		return CategoryOther
	}
	return axisCategories[a]
}

func (a Axis) String() string {
	return string(a.Category())
}

// Axis maps a category to its axis. Other (and anything unknown) has no axis.
func (c Category) Axis() (Axis, bool) {
	for i, cat := range axisCategories {
		if cat == c {
			return Axis(i), true
		}
	}
	return 0, false
}

// IsAxis reports whether the category is one of the six scored axes
func (c Category) IsAxis() bool {
	_, ok := c.Axis()
	return ok
}

// ParseCategory normalizes a category name case-insensitively.
// Unknown names report false.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, cat := range axisCategories {
		if strings.EqualFold(s, string(cat)) {
			return cat, true
		}
	}
	if strings.EqualFold(s, string(CategoryOther)) {
		return CategoryOther, true
	}
	return CategoryOther, false
}

// Vector is a point in the six-axis ideological space
type Vector [AxisCount]float64

// Sub returns v - o
func (v Vector) Sub(o Vector) Vector {
	var out Vector
	for i := range v {
		out[i] = v[i] - o[i]
	}
	return out
}

// Norm returns the Euclidean length of v
func (v Vector) Norm() float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
