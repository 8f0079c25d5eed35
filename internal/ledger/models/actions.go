package models

// Action is a request to audit one business action. Payload may be any
// JSON-serialisable value; the typed payloads below cover the known kinds and
// are flattened to an open key/value object when recorded.
type Action struct {
	Kind    Kind
	ActorID string
	Payload any
}

// CadastroPayload attests a user registration.
type CadastroPayload struct {
	Usuario     string `json:"usuario"`
	TipoUsuario string `json:"tipo_usuario"`
	Timestamp   int64  `json:"timestamp,omitempty"`
}

// LicitacaoPayload attests the creation of a bidding process.
type LicitacaoPayload struct {
	LicitacaoID   string  `json:"licitacao_id"`
	NumeroEdital  string  `json:"numero_edital"`
	Titulo        string  `json:"titulo"`
	ValorEstimado float64 `json:"valor_estimado"`
}

// PublicacaoPayload attests that a bidding process was published.
type PublicacaoPayload struct {
	LicitacaoID  string `json:"licitacao_id"`
	NumeroEdital string `json:"numero_edital"`
	Status       string `json:"status"`
}

// PropostaPayload attests a proposal submitted against a bidding process.
type PropostaPayload struct {
	PropostaID    string  `json:"proposta_id"`
	LicitacaoID   string  `json:"licitacao_id"`
	ValorProposta float64 `json:"valor_proposta"`
	PrazoExecucao int     `json:"prazo_execucao"`
}

// AvaliacaoPayload attests the evaluation of a proposal.
type AvaliacaoPayload struct {
	PropostaID string   `json:"proposta_id"`
	Status     string   `json:"status"`
	Pontuacao  *float64 `json:"pontuacao,omitempty"`
}

// DocumentoPayload attests a document upload by its file digest.
type DocumentoPayload struct {
	DocumentoID string `json:"documento_id"`
	NomeArquivo string `json:"nome_arquivo"`
	HashArquivo string `json:"hash_arquivo"`
}

// NewCadastro builds the action recorded when a user registers. The actor is
// the newly created user.
func NewCadastro(userID string, p CadastroPayload) Action {
	return Action{Kind: KindCadastro, ActorID: userID, Payload: p}
}

// NewLicitacao builds the action recorded when a government entity creates a bidding process.
func NewLicitacao(actorID string, p LicitacaoPayload) Action {
	return Action{Kind: KindLicitacao, ActorID: actorID, Payload: p}
}

// NewPublicacao builds the action recorded when a bidding process is published.
func NewPublicacao(actorID string, p PublicacaoPayload) Action {
	return Action{Kind: KindPublicacao, ActorID: actorID, Payload: p}
}

// NewProposta builds the action recorded when a company submits a proposal.
func NewProposta(actorID string, p PropostaPayload) Action {
	return Action{Kind: KindProposta, ActorID: actorID, Payload: p}
}

// NewAvaliacao builds the action recorded when a proposal is evaluated.
func NewAvaliacao(actorID string, p AvaliacaoPayload) Action {
	return Action{Kind: KindAvaliacao, ActorID: actorID, Payload: p}
}

// NewDocumento builds the action recorded when a document is uploaded.
func NewDocumento(actorID string, p DocumentoPayload) Action {
	return Action{Kind: KindDocumento, ActorID: actorID, Payload: p}
}
