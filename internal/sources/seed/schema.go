package seed

// File is the top-level structure of the seed file: a list of profiles.
type File []Entry

// Entry is one profile to create.
type Entry struct {
	Username string      `yaml:"username"`
	Owner    string      `yaml:"owner"`
	Theme    string      `yaml:"theme,omitempty"`
	Links    []LinkEntry `yaml:"links,omitempty"`
}

// LinkEntry is one link of a seeded profile. Ids are assigned on import.
type LinkEntry struct {
	Title    string `yaml:"title"`
	URL      string `yaml:"url"`
	Category string `yaml:"category,omitempty"`
}
