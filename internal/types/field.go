package types

import "strings"

// FieldKind identifies a structured listing attribute.
type FieldKind string

const (
	KindPrice         FieldKind = "price"
	KindRent          FieldKind = "rent"
	KindManagementFee FieldKind = "management_fee"
	KindDeposit       FieldKind = "deposit"
	KindKeyMoney      FieldKind = "key_money"
	KindName          FieldKind = "name"
	KindAddress       FieldKind = "address"
	KindStation       FieldKind = "station"
	KindWalk          FieldKind = "walk"
	KindArea          FieldKind = "area"
	KindLayout        FieldKind = "layout"
	KindBuildingAge   FieldKind = "building_age"
	KindFloor         FieldKind = "floor"
	KindParking       FieldKind = "parking"
	KindEquipment     FieldKind = "equipment"
)

// Field is a single structured value of a listing. Values are kept verbatim.
type Field struct {
	Kind  FieldKind `json:"kind"`
	Label string    `json:"label"`
	Value string    `json:"value"`
}

// Line renders the field as "Label: Value".
func (f Field) Line() string {
	label := f.Label
	if label == "" {
		label = f.Kind.DefaultLabel()
	}
	return label + ": " + f.Value
}

// Category returns the priority category of the field.
func (f Field) Category() Category {
	return f.Kind.Category()
}

var kindInfo = map[FieldKind]struct {
	category Category
	label    string
}{
	KindPrice:         {CategoryPrice, "Price"},
	KindRent:          {CategoryPrice, "Rent"},
	KindManagementFee: {CategoryPrice, "Management fee"},
	KindDeposit:       {CategoryPrice, "Deposit"},
	KindKeyMoney:      {CategoryPrice, "Key money"},
	KindName:          {CategoryAddress, "Name"},
	KindAddress:       {CategoryAddress, "Address"},
	KindStation:       {CategoryAddress, "Station"},
	KindWalk:          {CategoryAddress, "Walk"},
	KindArea:          {CategorySpecs, "Area"},
	KindLayout:        {CategorySpecs, "Layout"},
	KindBuildingAge:   {CategorySpecs, "Building age"},
	KindFloor:         {CategorySpecs, "Floor"},
	KindParking:       {CategorySpecs, "Parking"},
	KindEquipment:     {CategorySpecs, "Equipment"},
}

// IsValid reports whether k is a known kind.
func (k FieldKind) IsValid() bool {
	_, ok := kindInfo[k]
	return ok
}

// Category returns the category a kind belongs to. Unknown kinds are specs.
func (k FieldKind) Category() Category {
	if info, ok := kindInfo[k]; ok {
		return info.category
	}
	return CategorySpecs
}

// DefaultLabel returns the English label used when a field carries none.
func (k FieldKind) DefaultLabel() string {
	if info, ok := kindInfo[k]; ok {
		return info.label
	}
	return string(k)
}

// fieldLabels maps lower-cased labels, Japanese and English, to kinds.
var fieldLabels = map[string]FieldKind{
	"price":          KindPrice,
	"価格":             KindPrice,
	"販売価格":           KindPrice,
	"rent":           KindRent,
	"賃料":             KindRent,
	"家賃":             KindRent,
	"management fee": KindManagementFee,
	"管理費":            KindManagementFee,
	"共益費":            KindManagementFee,
	"管理費等":           KindManagementFee,
	"deposit":        KindDeposit,
	"敷金":             KindDeposit,
	"key money":      KindKeyMoney,
	"礼金":             KindKeyMoney,
	"name":           KindName,
	"物件名":            KindName,
	"建物名":            KindName,
	"address":        KindAddress,
	"location":       KindAddress,
	"住所":             KindAddress,
	"所在地":            KindAddress,
	"station":        KindStation,
	"access":         KindStation,
	"最寄り駅":           KindStation,
	"交通":             KindStation,
	"walk":           KindWalk,
	"徒歩":             KindWalk,
	"駅徒歩":            KindWalk,
	"area":           KindArea,
	"size":           KindArea,
	"面積":             KindArea,
	"専有面積":           KindArea,
	"土地面積":           KindArea,
	"建物面積":           KindArea,
	"layout":         KindLayout,
	"rooms":          KindLayout,
	"間取り":            KindLayout,
	"building age":   KindBuildingAge,
	"year built":     KindBuildingAge,
	"築年数":            KindBuildingAge,
	"築年月":            KindBuildingAge,
	"floor":          KindFloor,
	"階":              KindFloor,
	"所在階":            KindFloor,
	"階数":             KindFloor,
	"parking":        KindParking,
	"駐車場":            KindParking,
	"equipment":      KindEquipment,
	"features":       KindEquipment,
	"設備":             KindEquipment,
}

// KindForLabel resolves a field label such as "価格" or "Price" to its kind.
func KindForLabel(label string) (FieldKind, bool) {
	kind, ok := fieldLabels[strings.ToLower(TrimLabel(label))]
	return kind, ok
}

// TrimLabel strips surrounding whitespace and decoration such as "【価格】".
func TrimLabel(label string) string {
	label = strings.Trim(strings.TrimSpace(label), "・■●◆【】[]")
	return strings.TrimSpace(label)
}
