package soknad

import (
	"time"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/replay"
)

// Kontekst is read-only reference data used to validate transitions.
type Kontekst struct {
	// SakID, when set, must be the sak the application belongs to.
	SakID uuid.UUID
}

// Machine folds application events into a Soknad.
//
//	Ny -> JournalfortUtenOppgave -> MedOppgave -> Avvist | TrukketAvSoker | Bortfalt
type Machine struct{}

func (Machine) Apply(state Soknad, evt replay.Decoded, ext Kontekst) (Soknad, error) {
	if ext.SakID != uuid.Nil && ext.SakID != evt.OwnerID {
		return nil, replay.Invariant("soknad belongs to sak %s, not %s", evt.OwnerID, ext.SakID)
	}

	switch s := state.(type) {
	case nil:
		if data, ok := evt.Data.(MottattHendelse); ok {
			return motta(evt, data)
		}
	case Ny:
		if data, ok := evt.Data.(JournalfortHendelse); ok {
			if data.JournalpostID == "" {
				return nil, replay.Invariant("journalpost id is required")
			}
			return JournalfortUtenOppgave{Felles: s.neste(evt), JournalpostID: data.JournalpostID}, nil
		}
	case JournalfortUtenOppgave:
		if data, ok := evt.Data.(OppgaveOpprettetHendelse); ok {
			if data.OppgaveID == "" {
				return nil, replay.Invariant("oppgave id is required")
			}
			return MedOppgave{Felles: s.neste(evt), JournalpostID: s.JournalpostID, OppgaveID: data.OppgaveID}, nil
		}
	case MedOppgave:
		if data, ok := evt.Data.(LukketHendelse); ok {
			return lukk(s, evt, data)
		}
	}
	return nil, replay.Reject(state, evt)
}

func motta(evt replay.Decoded, data MottattHendelse) (Soknad, error) {
	if data.Innsendt.IsZero() {
		return nil, replay.Invariant("innsendt is required")
	}
	if _, err := time.Parse(Datoformat, data.Mottaksdato); err != nil {
		return nil, replay.Invariant("invalid mottaksdato %q", data.Mottaksdato)
	}
	return Ny{Felles: Felles{
		ID:          evt.AggregateID,
		SakID:       evt.OwnerID,
		Innsendt:    data.Innsendt,
		Mottaksdato: data.Mottaksdato,
		InnsendtAv:  data.InnsendtAv,
		Versjon:     evt.Version,
	}}, nil
}

func lukk(s MedOppgave, evt replay.Decoded, data LukketHendelse) (Soknad, error) {
	if data.LukketAv == "" {
		return nil, replay.Invariant("lukket av is required")
	}
	if evt.OccurredAt.Before(s.Innsendt) {
		return nil, replay.Invariant("soknad cannot be closed at %s, before it was sent in at %s",
			evt.OccurredAt.Format(time.RFC3339), s.Innsendt.Format(time.RFC3339))
	}

	felles := s.neste(evt)
	lukking := Lukkedetaljer{
		LukketAv:      data.LukketAv,
		Lukket:        evt.OccurredAt,
		JournalpostID: s.JournalpostID,
		OppgaveID:     s.OppgaveID,
	}

	switch data.Arsak {
	case ArsakAvvist:
		if data.Brevvalg == nil || data.Brevvalg.Type == "" {
			return nil, replay.Invariant("an avvist soknad requires a brevvalg")
		}
		return Avvist{Felles: felles, Lukkedetaljer: lukking, Brevvalg: *data.Brevvalg}, nil
	case ArsakTrukketAvSoker:
		trukket, err := time.Parse(Datoformat, data.TrukketDato)
		if err != nil {
			return nil, replay.Invariant("invalid trukket dato %q", data.TrukketDato)
		}
		mottatt, _ := time.Parse(Datoformat, s.Mottaksdato)
		lukket, _ := time.Parse(Datoformat, evt.OccurredAt.UTC().Format(Datoformat))
		if trukket.Before(mottatt) || trukket.After(lukket) {
			return nil, replay.Invariant("trukket dato %s must be between mottaksdato %s and %s",
				data.TrukketDato, s.Mottaksdato, lukket.Format(Datoformat))
		}
		return TrukketAvSoker{Felles: felles, Lukkedetaljer: lukking, TrukketDato: data.TrukketDato}, nil
	case ArsakBortfalt:
		return Bortfalt{Felles: felles, Lukkedetaljer: lukking}, nil
	}
	return nil, replay.Invariant("unknown arsak %q", data.Arsak)
}

func (f Felles) neste(evt replay.Decoded) Felles {
	f.Versjon = evt.Version
	return f
}
