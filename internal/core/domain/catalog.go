package domain

type FoodItemID string

type Category string

const (
	CategoryAll      Category = "all"
	CategoryCookies  Category = "cookies"
	CategoryCakes    Category = "cakes"
	CategoryBread    Category = "bread"
	CategoryPastries Category = "pastries"
	CategoryPies     Category = "pies"
	CategoryMuffins  Category = "muffins"
	CategoryDonuts   Category = "donuts"
	CategoryOther    Category = "other"
)

// Categories lists the selectable categories in display order, "all" first.
var Categories = []Category{
	CategoryAll,
	CategoryCookies,
	CategoryCakes,
	CategoryBread,
	CategoryPastries,
	CategoryPies,
	CategoryMuffins,
	CategoryDonuts,
	CategoryOther,
}

func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryAll, nil
	}
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", ErrUnknownCategory
}

type FoodItem struct {
	ID          FoodItemID `json:"id" yaml:"id"`
	SellerID    SellerID   `json:"seller_id" yaml:"seller_id"`
	SellerName  string     `json:"seller_name" yaml:"seller_name"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	Price       float64    `json:"price" yaml:"price"`
	Image       string     `json:"image" yaml:"image"`
	DistanceKm  float64    `json:"distance_km" yaml:"distance_km"`
	Freshness   string     `json:"freshness" yaml:"freshness"`
	Category    Category   `json:"category" yaml:"category"`
	Rating      float64    `json:"rating" yaml:"rating"`
	ReviewCount int        `json:"review_count" yaml:"review_count"`
}

func (f FoodItem) ListingTitle() string { return f.Title }
func (f FoodItem) ListingSeller() string { return f.SellerName }
func (f FoodItem) ListingCategory() Category { return f.Category }
func (f FoodItem) ListingDistance() float64 { return f.DistanceKm }
