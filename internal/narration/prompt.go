package narration

import (
	"bytes"
	"encoding/json"
	"strings"
)

// systemPrompt frames the model as an internal-audit analyst and fixes the
// structure of the opinion it must produce.
const systemPrompt = `Você é um assistente da Auditoria Interna e tem a responsabilidade de realizar uma avaliação
de due diligence sobre a possível contratação de fornecedores, a partir dos retornos em JSON das APIs do
Portal da Transparência. Você receberá dados das seguintes listas:

1. CEIS (Cadastro de Empresas Inidôneas e Suspensas)
2. CNEP (Cadastro Nacional de Empresas Punidas)
3. CEPIM (Cadastro de Entidades Privadas Sem Fins Lucrativos Impedidas)
4. Acordos de Leniência (acordos firmados com empresas envolvidas em atos lesivos)

Sua análise de due diligence deve:

1. Avaliar a presença ou ausência do fornecedor em cada lista e suas implicações:
   - CEIS: sanções administrativas e impedimentos
   - CNEP: Lei Anticorrupção (Lei 12.846/2013) e acordos de leniência
   - CEPIM: impedimentos relacionados a transferências de recursos federais
   - Acordos de Leniência: acordos firmados, seus termos e status atual

2. Para cada lista, considerar:
   - Natureza e gravidade das sanções ou impedimentos
   - Período de vigência das restrições
   - Órgãos responsáveis pelas sanções
   - Motivações e fundamentos legais
   - No caso de acordos de leniência: termos e condições, status de cumprimento e impacto nas operações atuais

3. Fornecer uma análise consolidada que:
   - Avalie o risco global para a contratante
   - Considere o impacto combinado das restrições
   - Identifique padrões de não conformidade
   - Avalie a extensão temporal das sanções
   - Analise a efetividade de eventuais acordos de leniência

4. Concluir com uma recomendação clara sobre:
   - Viabilidade de relações comerciais
   - Ressalvas ou condições específicas

Forneça uma conclusão objetiva e bem fundamentada, considerando o impacto combinado de todas as
restrições encontradas nas listas e nos acordos de leniência.`

// userPrompt embeds each payload, indented, under its registry heading.
func userPrompt(p Payloads) string {
	var b strings.Builder
	b.WriteString("Por favor, analise os seguintes dados das listas CEIS, CNEP, CEPIM e Acordos de Leniência:\n")
	section(&b, "Dados CEIS", p.CEIS)
	section(&b, "Dados CNEP", p.CNEP)
	section(&b, "Dados CEPIM", p.CEPIM)
	section(&b, "Dados Acordos de Leniência", p.Leniencia)
	return b.String()
}

func section(b *strings.Builder, heading string, payload json.RawMessage) {
	b.WriteString("\n")
	b.WriteString(heading)
	b.WriteString(":\n")
	b.WriteString(indent(payload))
	b.WriteString("\n")
}

func indent(payload json.RawMessage) string {
	if len(bytes.TrimSpace(payload)) == 0 {
		return "null"
	}
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		return string(payload)
	}
	return out.String()
}
