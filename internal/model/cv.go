package model

// Go models matching the cv.schema.json used to validate the structured
// data the form submits alongside a generation request.

type Personal struct {
	Name     string `json:"name"`
	Headline string `json:"headline,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Location string `json:"location,omitempty"`
	Photo    string `json:"photo,omitempty"`
}

type Experience struct {
	Company string   `json:"company"`
	Title   string   `json:"title"`
	Period  string   `json:"period,omitempty"`
	Bullets []string `json:"bullets,omitempty"`
}

type Education struct {
	School string `json:"school"`
	Period string `json:"period,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

type Project struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

type CV struct {
	Personal   Personal     `json:"personal"`
	Summary    string       `json:"summary,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
	Education  []Education  `json:"education,omitempty"`
	Projects   []Project    `json:"projects,omitempty"`
	Skills     []string     `json:"skills,omitempty"`
	Languages  []string     `json:"languages,omitempty"`
	Interests  []string     `json:"interests,omitempty"`
}
