package domain

import "strings"

// Operator is a field comparison understood by the filter query parameter.
type Operator string

const (
	OpEquals             Operator = "_eq"
	OpNotEqual           Operator = "_neq"
	OpLessThan           Operator = "_lt"
	OpLessThanOrEqual    Operator = "_lte"
	OpGreaterThan        Operator = "_gt"
	OpGreaterThanOrEqual Operator = "_gte"
	OpIn                 Operator = "_in"
	OpNotIn              Operator = "_nin"
	OpIsNull             Operator = "_null"
	OpIsNotNull          Operator = "_nnull"
	OpContains           Operator = "_contains"
	OpNotContains        Operator = "_ncontains"
	OpStartsWith         Operator = "_starts_with"
	OpNotStartsWith      Operator = "_nstarts_with"
	OpEndsWith           Operator = "_ends_with"
	OpNotEndsWith        Operator = "_nends_with"
	OpBetween            Operator = "_between"
	OpNotBetween         Operator = "_nbetween"
	OpEmpty              Operator = "_empty"
	OpNotEmpty           Operator = "_nempty"
)

// Filter is a filter expression.
type Filter interface {
	Value() Value
}

// FilterJSON renders f as compact JSON.
func FilterJSON(f Filter) string {
	data, err := f.Value().MarshalJSON()
	if err != nil {
		return "{}"
	}
	return string(data)
}

// PropertyFilter compares one field: {"field": {"_op": value}}.
// A value ValueOf cannot convert is sent as null.
type PropertyFilter struct {
	Field    string
	Operator Operator
	Operand  any
}

// Where builds a PropertyFilter.
func Where(field string, op Operator, operand any) PropertyFilter {
	return PropertyFilter{Field: field, Operator: op, Operand: operand}
}

func (p PropertyFilter) Value() Value {
	operand, err := ValueOf(p.Operand)
	if err != nil {
		operand = NullValue()
	}
	inner := NewFields()
	inner.Set(string(p.Operator), operand)
	outer := NewFields()
	outer.Set(p.Field, MapValue(inner))
	return MapValue(outer)
}

// LogicalOperator combines child filters.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "_and"
	LogicalOr  LogicalOperator = "_or"
)

// LogicalFilter is {"_and": [...]} or {"_or": [...]}.
type LogicalFilter struct {
	Operator LogicalOperator
	Children []Filter
}

// And combines filters with _and.
func And(children ...Filter) LogicalFilter {
	return LogicalFilter{Operator: LogicalAnd, Children: children}
}

// Or combines filters with _or.
func Or(children ...Filter) LogicalFilter {
	return LogicalFilter{Operator: LogicalOr, Children: children}
}

func (l LogicalFilter) Value() Value {
	children := make([]Value, len(l.Children))
	for i, c := range l.Children {
		children[i] = c.Value()
	}
	f := NewFields()
	f.Set(string(l.Operator), ListValue(children...))
	return MapValue(f)
}

// RelationFilter applies a filter to a related item: {"relation": {...}}.
type RelationFilter struct {
	Property string
	Filter   Filter
}

func (r RelationFilter) Value() Value {
	f := NewFields()
	f.Set(r.Property, r.Filter.Value())
	return MapValue(f)
}

// SortProperty is one sort key.
type SortProperty struct {
	Name       string
	Descending bool
}

// Asc sorts by name ascending.
func Asc(name string) SortProperty { return SortProperty{Name: name} }

// Desc sorts by name descending.
func Desc(name string) SortProperty { return SortProperty{Name: name, Descending: true} }

func (s SortProperty) String() string {
	if s.Descending {
		return "-" + s.Name
	}
	return s.Name
}

// JoinSort renders sort keys as the comma separated sort parameter.
func JoinSort(props []SortProperty) string {
	parts := make([]string, len(props))
	for i, p := range props {
		parts[i] = p.String()
	}
	return strings.Join(parts, ",")
}
