package defaults

// Entry is one item of the default bookmark document.
type Entry struct {
	Name   string `yaml:"name" json:"name"`
	URL    string `yaml:"url" json:"url"`
	Region string `yaml:"region" json:"region"`
}

// Document is the root of the default bookmark file: a flat array.
// JSON is read through the YAML parser, so both formats are accepted.
//
//	[{"name": "YouTube", "url": "https://www.youtube.com", "region": "Global"}]
type Document []Entry
