package model

// Item is a purchasable catalog entry (a single book or a bundle) resolved at
// purchase-creation time. Price is in minor units; zero means free.
type Item struct {
	ID    string
	Type  ItemType
	Title string
	Price int64
}

func (i *Item) IsFree() bool { return i != nil && i.Price == 0 }
