package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Specialty is a coarse problem category used to match technicians.
type Specialty string

const (
	SpecialtyNetwork   Specialty = "Network"
	SpecialtySoftware  Specialty = "Software"
	SpecialtyHardware  Specialty = "Hardware"
	SpecialtyUndefined Specialty = "Undefined"
)

// specialtyLabels lists the directory labels that denote each specialty.
var specialtyLabels = map[Specialty][]string{
	SpecialtyNetwork:  {"Network", "Networking", "Redes", "Rede", "Internet", "Infraestrutura"},
	SpecialtySoftware: {"Software", "Software e Aplicativo", "Aplicativo", "Sistemas"},
	SpecialtyHardware: {"Hardware", "Equipamento", "Manutencao"},
}

type keywordSet struct {
	specialty Specialty
	keywords  []string
}

// Checked in order; the first specialty with a matching keyword wins.
var defaultKeywords = []keywordSet{
	{SpecialtyNetwork, []string{
		"internet", "wi-fi", "wifi", "rede", "modem", "roteador", "conexao", "conectar", "ping", "ip", "dns",
		"servidor", "cabo de rede", "lan", "wan", "switch", "firewall", "porta de rede", "sem sinal",
		"sem acesso", "perda de pacote", "network", "router", "vpn",
	}},
	{SpecialtySoftware, []string{
		"windows", "programa", "instalar", "atualizar", "erro", "sistema", "office", "navegador", "virus",
		"excel", "word", "powerpoint", "aplicativo", "app", "software", "travando", "lentidao", "tela azul",
		"nao abre", "fechando sozinho", "bug", "crash", "instalacao", "licenca", "registro", "driver",
		"compatibilidade", "browser",
	}},
	{SpecialtyHardware, []string{
		"mouse", "teclado", "monitor", "impressora", "usb", "placa", "fonte", "hd", "superaquecimento",
		"computador", "notebook", "nao liga", "barulho", "ventoinha", "memoria", "cabo", "energia",
		"bateria", "tela preta", "sem imagem", "led piscando", "conector", "trincado", "quebrado",
		"desligando sozinho", "falha fisica", "keyboard", "printer",
	}},
}

// shortKeyword is the length up to which a keyword must match a whole word.
const shortKeyword = 3

// SpecialtyClassifier maps problem descriptions to a specialty by keyword.
type SpecialtyClassifier struct {
	sets []keywordSet
}

// NewSpecialtyClassifier returns a classifier with the built-in keyword sets.
func NewSpecialtyClassifier() *SpecialtyClassifier {
	sets := make([]keywordSet, len(defaultKeywords))
	for i, set := range defaultKeywords {
		normalized := make([]string, len(set.keywords))
		for j, kw := range set.keywords {
			normalized[j] = normalizeText(kw)
		}
		sets[i] = keywordSet{specialty: set.specialty, keywords: normalized}
	}
	return &SpecialtyClassifier{sets: sets}
}

// Classify never fails; text with no known keyword is Undefined.
func (c *SpecialtyClassifier) Classify(problem string) Specialty {
	text := normalizeText(problem)
	if text == "" {
		return SpecialtyUndefined
	}
	words := wordSet(text)
	for _, set := range c.sets {
		for _, kw := range set.keywords {
			if len(kw) <= shortKeyword {
				if _, ok := words[kw]; ok {
					return set.specialty
				}
				continue
			}
			if strings.Contains(text, kw) {
				return set.specialty
			}
		}
	}
	return SpecialtyUndefined
}

// MatchesSpecialty compares a technician's specialty label with a tag,
// case- and accent-insensitively, by substring in either direction.
func MatchesSpecialty(tag Specialty, technicianSpecialty string) bool {
	spec := normalizeText(technicianSpecialty)
	if spec == "" || tag == SpecialtyUndefined {
		return false
	}
	labels := append([]string{string(tag)}, specialtyLabels[tag]...)
	for _, label := range labels {
		l := normalizeText(label)
		if strings.Contains(l, spec) || strings.Contains(spec, l) {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.TrimSpace(out)
}

func wordSet(text string) map[string]struct{} {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	words := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		words[f] = struct{}{}
	}
	return words
}
