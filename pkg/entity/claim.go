package entity

// Rank of a claim as reported by the data source.
type Rank string

const (
	RankPreferred  Rank = "preferred"
	RankNormal     Rank = "normal"
	RankDeprecated Rank = "deprecated"
)

// Kind enumerates the decoded value types of a snak.
type Kind int

const (
	// KindUndecodable marks snaks without a value or with a value type the
	// decoder does not understand. They are kept but never followed.
	KindUndecodable Kind = iota
	KindItem
	KindString
	KindTime
	KindQuantity
)

func (k Kind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindString:
		return "string"
	case KindTime:
		return "time"
	case KindQuantity:
		return "quantity"
	default:
		return "undecodable"
	}
}

// TimeValue is a point in time as encoded by the data source. The Time field
// keeps the source's signed ISO-like representation, e.g. "+1952-03-11T00:00:00Z".
type TimeValue struct {
	Time          string `json:"time"`
	Timezone      int    `json:"timezone"`
	Before        int    `json:"before"`
	After         int    `json:"after"`
	Precision     int    `json:"precision"`
	CalendarModel string `json:"calendarmodel"`
}

// QuantityValue is an amount with an optional unit and bounds, all kept in the
// source's decimal string form.
type QuantityValue struct {
	Amount     string `json:"amount"`
	Unit       string `json:"unit"`
	UpperBound string `json:"upperBound,omitempty"`
	LowerBound string `json:"lowerBound,omitempty"`
}

// Value is the decoded value of a snak. Exactly one of the typed fields is
// meaningful, selected by Kind.
type Value struct {
	Kind     Kind           `json:"kind"`
	Item     ID             `json:"item,omitempty"`
	String   string         `json:"string,omitempty"`
	Time     *TimeValue     `json:"time,omitempty"`
	Quantity *QuantityValue `json:"quantity,omitempty"`
	// Raw holds the undecoded datavalue JSON for KindUndecodable.
	Raw string `json:"raw,omitempty"`
}

// Key returns a comparable representation of the value.
func (v Value) Key() string {
	switch v.Kind {
	case KindItem:
		return string(v.Item)
	case KindString:
		return v.String
	case KindTime:
		return v.Time.Time
	case KindQuantity:
		return v.Quantity.Amount
	default:
		return ""
	}
}

// Snak is a single property/value pair, either a claim's main snak or one of
// its qualifiers.
type Snak struct {
	Property ID     `json:"property"`
	SnakType string `json:"snaktype"`
	DataType string `json:"datatype,omitempty"`
	Value    Value  `json:"value"`
}

// Claim is one relation instance on an entity.
type Claim struct {
	ID             string        `json:"id"`
	Rank           Rank          `json:"rank"`
	MainSnak       Snak          `json:"mainsnak"`
	Qualifiers     map[ID][]Snak `json:"qualifiers,omitempty"`
	QualifierOrder []ID          `json:"qualifiers-order,omitempty"`
}

// EffectiveRank returns the claim's rank, defaulting to normal.
func (c Claim) EffectiveRank() Rank {
	if c.Rank == "" {
		return RankNormal
	}
	return c.Rank
}

// TargetItem returns the item referenced by the main snak, if any.
func (c Claim) TargetItem() (ID, bool) {
	if c.MainSnak.Value.Kind != KindItem {
		return "", false
	}
	return c.MainSnak.Value.Item, true
}
