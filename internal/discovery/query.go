package discovery

import "strings"

// genreSynonyms maps a facet genre to search keywords, most canonical first.
var genreSynonyms = map[string][]string{
	"indie":      {"indie", "alternative", "indie rock", "indie pop"},
	"hip-hop":    {"hip-hop", "hip hop", "rap", "trap", "boom bap"},
	"pop":        {"pop", "pop hits", "chart hits", "top 40"},
	"electronic": {"electronic", "edm", "house", "techno", "drum and bass"},
	"rock":       {"rock", "hard rock", "classic rock", "alternative rock"},
	"r&b":        {"r&b", "rnb", "soul", "neo soul"},
	"country":    {"country", "country music", "country hits"},
	"jazz":       {"jazz", "jazz hits", "smooth jazz"},
	"metal":      {"metal", "heavy metal", "death metal", "metalcore"},
	"latino":     {"latino", "latin", "reggaeton", "latin trap"},
}

// artistTypeSynonyms maps a facet artist type to search keywords.
var artistTypeSynonyms = map[string][]string{
	"mainstream":  {"popular", "top", "hits", "viral"},
	"underground": {"underground", "deep", "hidden gems", "underground artists"},
	"indie":       {"indie", "independent", "independent artists"},
	"emerging":    {"new", "rising", "emerging", "up and coming", "breakthrough"},
}

// GenreVocabulary is the fixed keyword set scanned against playlist
// name+description when deriving genre evidence.
var GenreVocabulary = []string{
	"indie", "hip-hop", "pop", "rock", "electronic",
	"r&b", "country", "jazz", "metal", "latino",
}

// BuildQuery derives a playlist search query from a facet by taking the
// first synonym of the genre and artist type, joined with a space. Unknown
// values pass through verbatim so operators can probe arbitrary facets.
func BuildQuery(genre, artistType string) string {
	genreTerm := genre
	if syns, ok := genreSynonyms[strings.ToLower(genre)]; ok {
		genreTerm = syns[0]
	}
	typeTerm := artistType
	if syns, ok := artistTypeSynonyms[strings.ToLower(artistType)]; ok {
		typeTerm = syns[0]
	}
	return genreTerm + " " + typeTerm
}
