package service

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Merle-py/beehouse-pdf-app-sub000/model"
)

// The document layout is fixed so that rendering is deterministic: the same
// authorization data always produces byte-identical output. Page layout and
// letterhead are applied downstream by the document pipeline; this artifact
// is the contractual content Clicksign stamps signatures onto.
const authorizationTemplate = `AUTORIZACAO DE VENDA DE IMOVEL
================================

AUTORIZACAO N. {{.Authorization.ID}}

OUTORGANTE ({{.PartyTypeLabel}}):
{{- if eq .Party.Type "company"}}
  Razao social: {{.Party.Name}} (CNPJ {{.Party.TaxID}})
  Representante legal: {{.Party.LegalRepName}} (CPF {{.Party.LegalRepTaxID}})
{{- else}}
  Nome: {{.Party.Name}} (CPF {{.Party.TaxID}})
{{- end}}
{{- if eq .Party.Type "married_individual"}}
  Conjuge: {{.Party.SpouseName}} (CPF {{.Party.SpouseTaxID}})
{{- end}}
{{- range .Party.CoOwners}}
  Coproprietario: {{.Name}} (CPF {{.TaxID}})
{{- end}}

IMOVEL:
  Endereco: {{.Property.Address}}, {{.Property.City}}/{{.Property.State}} - CEP {{.Property.PostalCode}}
  Matricula: {{.Property.RegistryNumber}}
  Valor pedido: R$ {{printf "%.2f" .Property.AskingPrice}}

CONDICOES:
  Comissao de corretagem: {{printf "%.2f" .Authorization.CommissionPct}}%
{{- if gt .Authorization.ExclusivityDays 0}}
  Exclusividade: {{.Authorization.ExclusivityDays}} dias
{{- else}}
  Exclusividade: nao ha
{{- end}}

O OUTORGANTE autoriza a intermediacao da venda do imovel acima descrito nas
condicoes estipuladas, obrigando-se ao pagamento da comissao pactuada em caso
de concretizacao do negocio durante a vigencia desta autorizacao.
`

var documentTmpl = template.Must(template.New("authorization").Parse(authorizationTemplate))

var partyTypeLabels = map[string]string{
	model.PartyIndividual:        "pessoa fisica",
	model.PartyMarriedIndividual: "pessoa fisica casada",
	model.PartyCoOwners:          "coproprietarios",
	model.PartyCompany:           "pessoa juridica",
}

// RenderAuthorizationDocument generates the authorization contract bytes.
// Pure function of its inputs: no I/O, no clock reads. Required fields are
// validated exhaustively per party-type variant before rendering.
func RenderAuthorizationDocument(a *model.Authorization, prop *model.Property, party *model.Party) ([]byte, error) {
	if err := validatePartyFields(party); err != nil {
		return nil, err
	}
	if err := validatePropertyFields(party.Type, prop); err != nil {
		return nil, err
	}

	data := struct {
		Authorization  *model.Authorization
		Property       *model.Property
		Party          *model.Party
		PartyTypeLabel string
	}{a, prop, party, partyTypeLabels[party.Type]}

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render authorization document: %w", err)
	}
	return buf.Bytes(), nil
}

func validatePartyFields(p *model.Party) error {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if p.TaxID == "" {
		missing = append(missing, "tax_id")
	}

	switch p.Type {
	case model.PartyIndividual:
		// base fields only
	case model.PartyMarriedIndividual:
		if p.SpouseName == "" {
			missing = append(missing, "spouse_name")
		}
		if p.SpouseTaxID == "" {
			missing = append(missing, "spouse_tax_id")
		}
	case model.PartyCoOwners:
		if len(p.CoOwners) == 0 {
			missing = append(missing, "co_owners")
		}
		for i, co := range p.CoOwners {
			if co.Name == "" {
				missing = append(missing, fmt.Sprintf("co_owners[%d].name", i))
			}
			if co.TaxID == "" {
				missing = append(missing, fmt.Sprintf("co_owners[%d].tax_id", i))
			}
		}
	case model.PartyCompany:
		if p.LegalRepName == "" {
			missing = append(missing, "legal_rep_name")
		}
		if p.LegalRepTaxID == "" {
			missing = append(missing, "legal_rep_tax_id")
		}
	default:
		return &GenerationError{PartyType: p.Type, Missing: []string{"type"}}
	}

	if len(missing) > 0 {
		return &GenerationError{PartyType: p.Type, Missing: missing}
	}
	return nil
}

func validatePropertyFields(partyType string, prop *model.Property) error {
	var missing []string
	if prop.Address == "" {
		missing = append(missing, "address")
	}
	if prop.RegistryNumber == "" {
		missing = append(missing, "registry_number")
	}
	if len(missing) > 0 {
		return &GenerationError{PartyType: partyType, Missing: missing}
	}
	return nil
}
