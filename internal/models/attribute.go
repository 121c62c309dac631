package models

// FilterableAttribute is a product feature shoppers can filter the catalog by
// (frame size, wheel size, material...).
type FilterableAttribute struct {
	ID        string   `bson:"_id" json:"id"`
	Name      string   `bson:"name" json:"name"`
	Slug      string   `bson:"slug" json:"slug"`
	Icon      string   `bson:"icon,omitempty" json:"icon,omitempty"`
	InputType string   `bson:"inputType" json:"inputType"`
	Priority  int      `bson:"priority" json:"priority"`
	Values    []string `bson:"values" json:"values"`
}

// ProductAttribute is the selection of attribute values a product carries.
type ProductAttribute struct {
	Attribute string     `bson:"attribute" json:"attribute"`
	Values    StringList `bson:"values" json:"values"`
}
