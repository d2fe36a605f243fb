package soknad

import (
	"time"

	"github.com/navikt/su-se-bakover-sub020/hendelse"
	"github.com/navikt/su-se-bakover-sub020/replay"
)

const (
	MottattType          hendelse.Type = "SOKNAD_MOTTATT"
	JournalfortType      hendelse.Type = "SOKNAD_JOURNALFORT"
	OppgaveOpprettetType hendelse.Type = "SOKNAD_OPPGAVE_OPPRETTET"
	LukketType           hendelse.Type = "SOKNAD_LUKKET"
)

// Datoformat is the layout of calendar dates in payloads.
const Datoformat = "2006-01-02"

// MottattHendelse opens the lifecycle of one application. Mottaksdato may be
// earlier than Innsendt for applications received on paper.
type MottattHendelse struct {
	Innsendt    time.Time `json:"innsendt"`
	Mottaksdato string    `json:"mottaksdato"`
	InnsendtAv  string    `json:"innsendt_av"`
}

type JournalfortHendelse struct {
	JournalpostID string `json:"journalpost_id"`
}

type OppgaveOpprettetHendelse struct {
	OppgaveID string `json:"oppgave_id"`
}

type Arsak string

const (
	ArsakAvvist         Arsak = "AVVIST"
	ArsakTrukketAvSoker Arsak = "TRUKKET"
	ArsakBortfalt       Arsak = "BORTFALT"
)

type BrevvalgType string

const (
	SendInformasjonsbrev BrevvalgType = "SEND_INFORMASJONSBREV"
	SendVedtaksbrev      BrevvalgType = "SEND_VEDTAKSBREV"
	SkalIkkeSendeBrev    BrevvalgType = "SKAL_IKKE_SENDE_BREV"
)

type Brevvalg struct {
	Type     BrevvalgType `json:"type"`
	Fritekst string       `json:"fritekst,omitempty"`
}

// LukketHendelse closes the application. The event's occurred-at time is the
// time it was closed.
type LukketHendelse struct {
	Arsak       Arsak     `json:"arsak"`
	LukketAv    string    `json:"lukket_av"`
	TrukketDato string    `json:"trukket_dato,omitempty"`
	Brevvalg    *Brevvalg `json:"brevvalg,omitempty"`
}

// RegisterPayloads registers the codecs of every application event.
func RegisterPayloads(r *hendelse.Registry) {
	hendelse.RegisterJSON[MottattHendelse](r, MottattType)
	hendelse.RegisterJSON[JournalfortHendelse](r, JournalfortType)
	hendelse.RegisterJSON[OppgaveOpprettetHendelse](r, OppgaveOpprettetType)
	hendelse.RegisterJSON[LukketHendelse](r, LukketType)
}

// RegisterMachine binds application streams to Machine.
func RegisterMachine(r *replay.Registry) {
	r.Register(MottattType, replay.Bind[Soknad, Kontekst](Machine{}))
}
