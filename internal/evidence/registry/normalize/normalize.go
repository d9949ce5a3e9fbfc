// Package normalize reshapes raw registry payloads into uniform records.
//
// Purity: every function here is side-effect free. Nothing performs I/O or
// reads the clock, and normalizing the same payload twice yields equal output.
// A malformed item never aborts its batch; it is reported as an ItemError and
// the remaining items are still normalized.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"diligence/internal/evidence/registry/providers"
)

const (
	// Placeholder fills optional fields the registry left out.
	Placeholder = "Sem informação"
	// NoDescription replaces a missing legal basis.
	NoDescription = "Sem descrição"

	leniencyCategory = "Acordo de Leniência"
)

var (
	ErrNotArray  = errors.New("payload is not a JSON array")
	ErrNotObject = errors.New("item is not a JSON object")
	ErrMissingID = errors.New("item has no id")
)

// Record is the registry-independent view of one sanction, punishment or agreement.
type Record struct {
	ID            string           `json:"id"`
	Source        providers.Source `json:"source"`
	Party         string           `json:"party"`
	PartyDocument string           `json:"party_document"`
	Description   string           `json:"description"`
	Category      string           `json:"category"`
	Authority     string           `json:"authority"`
	StartDate     string           `json:"start_date"`
	EndDate       string           `json:"end_date"`
	Status        string           `json:"status"`
	Process       string           `json:"process"`
	Details       json.RawMessage  `json:"details,omitempty"`
}

// ItemError reports one item that could not be normalized.
// Index is -1 when the payload as a whole was unusable.
type ItemError struct {
	Source providers.Source `json:"source"`
	Index  int              `json:"index"`
	Err    error            `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s item %d: %v", e.Source, e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// MarshalJSON exposes the cause as a message.
func (e ItemError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source  providers.Source `json:"source"`
		Index   int              `json:"index"`
		Message string           `json:"message"`
	}{e.Source, e.Index, e.Err.Error()})
}

// shape lists, per record field, the gjson paths tried in order.
type shape struct {
	source        providers.Source
	party         []string
	partyDocument []string
	description   []string
	noDescription string
	category      []string
	fixedCategory string
	authority     []string
	startDate     []string
	endDate       []string
	status        []string
	process       []string
	// details selects what is kept verbatim; "" keeps the whole item.
	details     string
	keepDetails bool
}

var sanctionShape = shape{
	party:         []string{"sancionado.nome", "pessoa.nome"},
	partyDocument: []string{"sancionado.codigoFormatado", "pessoa.cpfFormatado", "pessoa.cnpjFormatado"},
	description:   []string{"fundamentacao.0.descricao"},
	noDescription: NoDescription,
	category:      []string{"tipoSancao.descricaoResumida", "tipoSancao.descricaoPortal"},
	authority:     []string{"fonteSancao.nomeExibicao", "orgaoSancionador.nome"},
	startDate:     []string{"dataInicioSancao"},
	endDate:       []string{"dataFimSancao"},
	status:        []string{"situacao"},
	process:       []string{"numeroProcesso"},
}

var shapes = map[providers.Source]shape{
	providers.SourceCEIS: withSource(sanctionShape, providers.SourceCEIS, false),
	providers.SourceCNEP: withSource(sanctionShape, providers.SourceCNEP, true),
	providers.SourceCEPIM: {
		source:        providers.SourceCEPIM,
		party:         []string{"pessoaJuridica.nome", "pessoaJuridica.razaoSocialReceita"},
		partyDocument: []string{"pessoaJuridica.cnpjFormatado"},
		description:   []string{"convenio.objeto"},
		category:      []string{"motivo"},
		authority:     []string{"orgaoSuperior.nome"},
		startDate:     []string{"dataReferencia"},
		process:       []string{"convenio.numero", "convenio.codigo"},
		keepDetails:   true,
	},
	providers.SourceLeniencia: {
		source:        providers.SourceLeniencia,
		party:         []string{"sancoes.0.razaoSocial", "sancoes.0.nomeInformadoOrgaoResponsavel"},
		partyDocument: []string{"sancoes.0.cnpjFormatado"},
		description:   []string{"sancoes.0.nomeInformadoOrgaoResponsavel"},
		fixedCategory: leniencyCategory,
		authority:     []string{"orgaoResponsavel"},
		startDate:     []string{"dataInicioAcordo"},
		endDate:       []string{"dataFimAcordo"},
		status:        []string{"situacaoAcordo"},
		details:       "sancoes.0",
		keepDetails:   true,
	},
	providers.SourceCEAF: {
		source:        providers.SourceCEAF,
		party:         []string{"punicao.nomePunido", "pessoa.nome"},
		partyDocument: []string{"punicao.cpfPunidoFormatado", "pessoa.cpfFormatado"},
		description:   []string{"fundamentacao.0.descricao"},
		noDescription: NoDescription,
		category:      []string{"tipoPunicao.descricao"},
		authority:     []string{"orgaoLotacao.nome", "punicao.orgaoLotacao"},
		startDate:     []string{"dataPublicacao"},
		process:       []string{"punicao.processo", "punicao.portaria"},
		keepDetails:   true,
	},
}

func withSource(s shape, source providers.Source, keepDetails bool) shape {
	s.source = source
	s.keepDetails = keepDetails
	return s
}

// NormalizeCEIS reshapes a CEIS payload.
func NormalizeCEIS(payload json.RawMessage) ([]Record, []ItemError) {
	return normalize(shapes[providers.SourceCEIS], payload)
}

// NormalizeCNEP reshapes a CNEP payload, keeping each original item under Details.
func NormalizeCNEP(payload json.RawMessage) ([]Record, []ItemError) {
	return normalize(shapes[providers.SourceCNEP], payload)
}

// NormalizeCEPIM reshapes a CEPIM payload, keeping each original item under Details.
func NormalizeCEPIM(payload json.RawMessage) ([]Record, []ItemError) {
	return normalize(shapes[providers.SourceCEPIM], payload)
}

// NormalizeLeniencia reshapes a leniency-agreement payload. Only the first
// sanction entry of each agreement is considered.
func NormalizeLeniencia(payload json.RawMessage) ([]Record, []ItemError) {
	return normalize(shapes[providers.SourceLeniencia], payload)
}

// NormalizeCEAF reshapes a CEAF payload, keeping each original item under Details.
func NormalizeCEAF(payload json.RawMessage) ([]Record, []ItemError) {
	return normalize(shapes[providers.SourceCEAF], payload)
}

// Normalize dispatches on source. Unknown sources yield a single payload-level ItemError.
func Normalize(source providers.Source, payload json.RawMessage) ([]Record, []ItemError) {
	s, ok := shapes[source]
	if !ok {
		return nil, []ItemError{{Source: source, Index: -1, Err: fmt.Errorf("unknown registry %q", source)}}
	}
	return normalize(s, payload)
}

func normalize(s shape, payload json.RawMessage) ([]Record, []ItemError) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" || trimmed == "null" {
		return []Record{}, nil
	}
	if !gjson.Valid(trimmed) {
		return []Record{}, []ItemError{{Source: s.source, Index: -1, Err: ErrNotArray}}
	}
	root := gjson.Parse(trimmed)
	if !root.IsArray() {
		return []Record{}, []ItemError{{Source: s.source, Index: -1, Err: ErrNotArray}}
	}

	items := root.Array()
	records := make([]Record, 0, len(items))
	var errs []ItemError
	for i, item := range items {
		rec, err := s.record(item)
		if err != nil {
			errs = append(errs, ItemError{Source: s.source, Index: i, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, errs
}

func (s shape) record(item gjson.Result) (Record, error) {
	if !item.IsObject() {
		return Record{}, ErrNotObject
	}
	idv := item.Get("id")
	id := strings.TrimSpace(idv.String())
	if id == "" || idv.IsObject() || idv.IsArray() {
		return Record{}, ErrMissingID
	}

	rec := Record{
		ID:            id,
		Source:        s.source,
		Party:         first(item, s.party, Placeholder),
		PartyDocument: first(item, s.partyDocument, Placeholder),
		Description:   first(item, s.description, orDefault(s.noDescription, Placeholder)),
		Category:      first(item, s.category, orDefault(s.fixedCategory, Placeholder)),
		Authority:     first(item, s.authority, Placeholder),
		StartDate:     first(item, s.startDate, Placeholder),
		EndDate:       first(item, s.endDate, Placeholder),
		Status:        first(item, s.status, Placeholder),
		Process:       first(item, s.process, Placeholder),
	}
	if s.keepDetails {
		raw := item.Raw
		if s.details != "" {
			raw = item.Get(s.details).Raw
		}
		if raw != "" {
			rec.Details = json.RawMessage(raw)
		}
	}
	return rec, nil
}

// first returns the first non-blank scalar found at paths.
func first(item gjson.Result, paths []string, fallback string) string {
	for _, p := range paths {
		v := item.Get(p)
		if !v.Exists() || v.IsObject() || v.IsArray() || v.Type == gjson.Null {
			continue
		}
		if s := strings.TrimSpace(v.String()); s != "" {
			return s
		}
	}
	return fallback
}

func orDefault(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
