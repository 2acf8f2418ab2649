package product

import "strings"

// fallbackFetchError is reported when a failed fetch carries no message.
const fallbackFetchError = "Failed to fetch products"

// State is the product browsing state of a single session.
type State struct {
	Items            []Product
	FilteredItems    []Product
	SelectedCategory string
	Loading          bool
	// Err is the human-readable message of the last failed fetch. Empty when
	// the last fetch succeeded or none has failed yet.
	Err string
}

// InitialState returns the idle state: nothing loaded, no filter.
func InitialState() State {
	return State{SelectedCategory: CategoryAll}
}

// Action is a state transition accepted by Reduce.
type Action interface {
	isAction()
}

// FetchStarted marks the start of a catalog fetch.
type FetchStarted struct{}

// FetchSucceeded carries the freshly fetched catalog.
type FetchSucceeded struct {
	Products []Product
}

// FetchFailed carries the message of a failed fetch.
type FetchFailed struct {
	Message string
}

// FilterByCategory narrows FilteredItems to a single category.
type FilterByCategory struct {
	Category string
}

// SearchProducts narrows FilteredItems to titles containing Query.
type SearchProducts struct {
	Query string
}

func (FetchStarted) isAction()     {}
func (FetchSucceeded) isAction()   {}
func (FetchFailed) isAction()      {}
func (FilterByCategory) isAction() {}
func (SearchProducts) isAction()   {}

// Reduce returns the state that results from applying a to s. It never
// mutates the slices of s.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case FetchStarted:
		s.Loading = true
		s.Err = ""
	case FetchSucceeded:
		s.Loading = false
		s.Items = a.Products
		s.FilteredItems = a.Products
	case FetchFailed:
		// Previously loaded items stay available.
		s.Loading = false
		s.Err = a.Message
		if s.Err == "" {
			s.Err = fallbackFetchError
		}
	case FilterByCategory:
		s.SelectedCategory = a.Category
		s.FilteredItems = ByCategory(s.Items, a.Category)
	case SearchProducts:
		s.FilteredItems = ByTitle(s.Items, a.Query)
	}
	return s
}

// ByCategory returns the products of the given category in their original
// order. CategoryAll returns items unchanged.
func ByCategory(items []Product, category string) []Product {
	if category == CategoryAll {
		return items
	}
	out := make([]Product, 0, len(items))
	for _, p := range items {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

// ByTitle returns the products whose title contains query, ignoring case, in
// their original order.
func ByTitle(items []Product, query string) []Product {
	q := strings.ToLower(query)
	out := make([]Product, 0, len(items))
	for _, p := range items {
		if strings.Contains(strings.ToLower(p.Title), q) {
			out = append(out, p)
		}
	}
	return out
}

// Find returns the product with the given id from items.
func Find(items []Product, id int64) (Product, bool) {
	for _, p := range items {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
