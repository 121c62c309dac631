package catalog

const (
	TagProductsList   = "products-list"
	TagCategoriesList = "categories-list"
	TagAttributesList = "attributes-list"
	TagBrandsList     = "brands-list"
)

func TagProduct(id string) string {
	return "product-" + id
}

func TagProductBySlug(slug string) string {
	return "product-slug-" + slug
}

func TagCategory(id string) string {
	return "category-" + id
}

func TagCategoryBySlug(slug string) string {
	return "category-slug-" + slug
}

func TagProductsByCategory(categorySlug string) string {
	return "products-category-" + categorySlug
}
