package contracts

// Sector labels. Matching is case-sensitive.
const (
	CategoryTech       = "Tech"
	CategoryHealthcare = "Healthcare"
	CategoryFinance    = "Finance"
	CategoryEnergy     = "Energy"
	CategoryConsumer   = "Consumer"
	CategoryIndustrial = "Industrial"
	CategoryTelecom    = "Telecom"
	CategoryRealEstate = "Real Estate"
	CategoryUtilities  = "Utilities"
	CategoryMaterials  = "Materials"

	// CategoryOthers is the fallback for companies that fit no sector
	CategoryOthers = "Others"
	// CategoryUnclassified marks stocks not yet classified
	CategoryUnclassified = "Unclassified"
)

// Taxonomy is the closed set of sector labels, in prompt order
var Taxonomy = []string{
	CategoryTech,
	CategoryHealthcare,
	CategoryFinance,
	CategoryEnergy,
	CategoryConsumer,
	CategoryIndustrial,
	CategoryTelecom,
	CategoryRealEstate,
	CategoryUtilities,
	CategoryMaterials,
}

// IsTaxonomyLabel reports whether label is one of the ten sectors
func IsTaxonomyLabel(label string) bool {
	for _, c := range Taxonomy {
		if c == label {
			return true
		}
	}
	return false
}

// IsAssignable reports whether the classifier may store label
func IsAssignable(label string) bool {
	return label == CategoryOthers || IsTaxonomyLabel(label)
}

// IsKnownCategory reports whether label may appear in stocks.category
func IsKnownCategory(label string) bool {
	return label == CategoryUnclassified || IsAssignable(label)
}

// Sentiment is the market outlook for a simulated week
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)
