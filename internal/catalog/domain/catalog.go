package domain

// College is an institution whose students may sign up. EmailDomain is the
// address suffix its student emails end with.
type College struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	EmailDomain string `json:"emailDomain"`
}

// Category is a marketplace listing category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}
