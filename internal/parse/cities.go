package parse

import (
	"strings"

	"github.com/sells-group/nip-resolver/internal/fuzzy"
)

// cities lists Polish cities recognised by the regex parser.
var cities = []string{
	"Warszawa", "Kraków", "Łódź", "Wrocław", "Poznań", "Gdańsk", "Szczecin", "Bydgoszcz",
	"Lublin", "Białystok", "Katowice", "Gdynia", "Częstochowa", "Radom", "Toruń", "Sosnowiec",
	"Rzeszów", "Kielce", "Gliwice", "Olsztyn", "Zabrze", "Bielsko-Biała", "Bytom", "Zielona Góra",
	"Rybnik", "Ruda Śląska", "Opole", "Tychy", "Gorzów Wielkopolski", "Elbląg", "Płock",
	"Dąbrowa Górnicza", "Wałbrzych", "Włocławek", "Tarnów", "Chorzów", "Koszalin", "Kalisz",
	"Legnica", "Grudziądz", "Jaworzno", "Słupsk", "Jastrzębie-Zdrój", "Nowy Sącz", "Jelenia Góra",
	"Siedlce", "Mysłowice", "Konin", "Piła", "Piotrków Trybunalski", "Inowrocław", "Lubin",
	"Ostrów Wielkopolski", "Suwałki", "Stargard", "Gniezno", "Ostrowiec Świętokrzyski",
	"Siemianowice Śląskie", "Głogów", "Pabianice", "Leszno", "Zamość", "Łomża", "Żory", "Pruszków",
	"Ełk", "Tomaszów Mazowiecki", "Chełm", "Mielec", "Kędzierzyn-Koźle", "Przemyśl",
	"Stalowa Wola", "Tczew", "Biała Podlaska", "Bełchatów", "Świdnica", "Będzin", "Zgierz",
	"Piekary Śląskie", "Racibórz", "Legionowo", "Ostrołęka", "Świętochłowice", "Wejherowo",
	"Zawiercie", "Starachowice", "Skierniewice", "Starogard Gdański", "Tarnowskie Góry",
	"Wodzisław Śląski", "Puławy", "Otwock", "Kutno", "Sopot", "Oleśnica", "Piaseczno",
	"Ząbki", "Kołobrzeg", "Zakopane", "Wieliczka", "Reda", "Rumia",
}

// cityIndex maps folded city names to their canonical spelling.
var cityIndex = func() map[string]string {
	out := make(map[string]string, len(cities))
	for _, c := range cities {
		out[fuzzy.Words(c)] = c
	}
	return out
}()

// maxCityTokens bounds the token window tried for multi-word cities.
const maxCityTokens = 3

// findCity returns the canonical name of the first city found in tokens
// and the token range [start, end) it occupies. Longer windows win at the
// same start, so "Zielona Góra" is not read as a shorter match.
func findCity(tokens []string) (string, int, int, bool) {
	folded := make([]string, len(tokens))
	for i, t := range tokens {
		folded[i] = fuzzy.Words(t)
	}
	for i := range folded {
		for n := maxCityTokens; n >= 1; n-- {
			if i+n > len(folded) {
				continue
			}
			if name, ok := cityIndex[strings.Join(folded[i:i+n], " ")]; ok {
				return name, i, i + n, true
			}
		}
	}
	return "", 0, 0, false
}
