package model

import "maps"

// DTO stages the values of a contact while it is being created or edited. Nothing is validated
// until the DTO is committed through Contact.Configure.
type DTO struct {
	values map[Parameter]any
	color  Color
}

// NewDTO returns an empty DTO with a random palette color.
func NewDTO() *DTO {
	return NewDTOWithColor(RandomColor())
}

// NewDTOWithColor returns an empty DTO with the given color.
func NewDTOWithColor(color Color) *DTO {
	return &DTO{values: make(map[Parameter]any), color: color}
}

// DTOFromContact stages every parameter of an existing contact together with its color.
func DTOFromContact(c Contact) *DTO {
	dto := NewDTOWithColor(c.Color)
	for _, b := range schema {
		b.project(c, dto)
	}
	return dto
}

// SetValue stages a present value for a field.
func SetValue[T any](dto *DTO, f Field[T], v T) {
	dto.values[f.param] = v
}

// Value returns the staged value of a field, or false if it is absent.
func Value[T any](dto *DTO, f Field[T]) (T, bool) {
	v, ok := dto.values[f.param].(T)
	return v, ok
}

// Clear marks a parameter as absent.
func (d *DTO) Clear(p Parameter) {
	delete(d.values, p)
}

// Has reports whether a value is staged for the parameter.
func (d *DTO) Has(p Parameter) bool {
	_, ok := d.values[p]
	return ok
}

// Color returns the staged color.
func (d *DTO) Color() Color {
	return d.color
}

// SetColor stages a color.
func (d *DTO) SetColor(color Color) {
	d.color = color
}

// Clone returns an independent copy, so a queued commit is not affected by later edits.
func (d *DTO) Clone() *DTO {
	return &DTO{values: maps.Clone(d.values), color: d.color}
}
