package orders

type Status string

const (
	StatusPending         Status = "pending"
	StatusPreparing       Status = "preparing"
	StatusReadyForServing Status = "ready_for_serving"
	StatusServed          Status = "served"
	StatusPaid            Status = "paid"
	StatusCancelled       Status = "cancelled"
)

// Explicit order transitions. Forward skips are allowed; backward moves are not.
var validNext = map[Status]map[Status]bool{
	StatusPending:         {StatusPreparing: true, StatusReadyForServing: true, StatusServed: true, StatusPaid: true, StatusCancelled: true},
	StatusPreparing:       {StatusReadyForServing: true, StatusServed: true, StatusPaid: true, StatusCancelled: true},
	StatusReadyForServing: {StatusServed: true, StatusPaid: true, StatusCancelled: true},
	StatusServed:          {StatusPaid: true, StatusCancelled: true},
	StatusPaid:            {},
	StatusCancelled:       {},
}

var orderRank = map[Status]int{
	StatusPending:         0,
	StatusPreparing:       1,
	StatusReadyForServing: 2,
	StatusServed:          3,
	StatusPaid:            4,
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// RequiresPrivilege reports whether an explicit move into s needs a manager or admin.
func (s Status) RequiresPrivilege() bool {
	return s == StatusPaid || s == StatusCancelled
}

type ItemStatus string

const (
	ItemPending       ItemStatus = "pending"
	ItemInPreparation ItemStatus = "in_preparation"
	ItemReady         ItemStatus = "ready"
	ItemDelivered     ItemStatus = "delivered"
	ItemCancelled     ItemStatus = "cancelled"
)

var itemNext = map[ItemStatus]map[ItemStatus]bool{
	ItemPending:       {ItemInPreparation: true, ItemReady: true, ItemDelivered: true, ItemCancelled: true},
	ItemInPreparation: {ItemReady: true, ItemDelivered: true, ItemCancelled: true},
	ItemReady:         {ItemDelivered: true, ItemCancelled: true},
	ItemDelivered:     {},
	ItemCancelled:     {},
}

var itemRank = map[ItemStatus]int{
	ItemPending:       0,
	ItemInPreparation: 1,
	ItemReady:         2,
	ItemDelivered:     3,
}

func CanTransitionItem(from, to ItemStatus) bool {
	return itemNext[from][to]
}

func (s ItemStatus) Valid() bool {
	_, ok := itemNext[s]
	return ok
}

func (s ItemStatus) Terminal() bool {
	return s == ItemDelivered || s == ItemCancelled
}

// Live items count towards totals and status aggregation.
func (s ItemStatus) Live() bool {
	return s != ItemCancelled
}

// DeriveStatus computes the aggregate order status implied by the live items.
// The result never ranks below current, and terminal orders are returned unchanged.
func DeriveStatus(current Status, items []Item) Status {
	if current.Terminal() {
		return current
	}
	live, started, readyOrLater, delivered := 0, 0, 0, 0
	for _, it := range items {
		if !it.Status.Live() {
			continue
		}
		live++
		r := itemRank[it.Status]
		if r >= itemRank[ItemInPreparation] {
			started++
		}
		if r >= itemRank[ItemReady] {
			readyOrLater++
		}
		if it.Status == ItemDelivered {
			delivered++
		}
	}
	if live == 0 {
		return current
	}

	target := current
	switch {
	case delivered == live:
		target = StatusServed
	case readyOrLater == live:
		target = StatusReadyForServing
	case started > 0:
		target = StatusPreparing
	}
	if orderRank[target] > orderRank[current] {
		return target
	}
	return current
}
