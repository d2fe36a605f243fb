package tilbakekreving

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/navikt/su-se-bakover-sub020/replay"
)

// Kontekst is read-only reference data used to validate transitions.
type Kontekst struct {
	// Kravgrunnlag, when set, restricts which months may be assessed.
	Kravgrunnlag *Kravgrunnlag
}

type Kravgrunnlag struct {
	ID      string
	Maneder []string
}

// Machine folds repayment events into a Behandling.
//
//	Opprettet -> Forhandsvarslet -> Vurdert -> TilAttestering -> Iverksatt
//	                                   ^             |
//	                                   +--Underkjent-+
//
// Every state before Iverksatt may be Avbrutt.
type Machine struct{}

func (Machine) Apply(state Behandling, evt replay.Decoded, ext Kontekst) (Behandling, error) {
	switch s := state.(type) {
	case nil:
		if data, ok := evt.Data.(OpprettetHendelse); ok {
			return opprett(evt, data)
		}
	case Opprettet:
		switch data := evt.Data.(type) {
		case ForhandsvarsletHendelse:
			return forhandsvarsle(s.Felles, evt, data)
		case AvbruttHendelse:
			return avbryt(s, evt, data)
		}
	case Forhandsvarslet:
		switch data := evt.Data.(type) {
		case ForhandsvarsletHendelse:
			return forhandsvarsle(s.Felles, evt, data)
		case VurdertHendelse:
			return vurder(s.Felles, evt, data, ext)
		case AvbruttHendelse:
			return avbryt(s, evt, data)
		}
	case Vurdert:
		switch data := evt.Data.(type) {
		case VurdertHendelse:
			return vurder(s.Felles, evt, data, ext)
		case TilAttesteringHendelse:
			if data.Saksbehandler == "" {
				return nil, replay.Invariant("saksbehandler is required")
			}
			return TilAttestering{
				Felles:        s.Felles.neste(evt),
				Vurderinger:   slices.Clone(s.Vurderinger),
				Saksbehandler: data.Saksbehandler,
				Sendt:         evt.OccurredAt,
			}, nil
		case AvbruttHendelse:
			return avbryt(s, evt, data)
		}
	case TilAttestering:
		switch data := evt.Data.(type) {
		case IverksattHendelse:
			if err := s.kontrollerAttestant(data.Attestant); err != nil {
				return nil, err
			}
			return Iverksatt{
				Felles:        s.Felles.neste(evt),
				Vurderinger:   slices.Clone(s.Vurderinger),
				Saksbehandler: s.Saksbehandler,
				Attestant:     data.Attestant,
				Iverksatt:     evt.OccurredAt,
			}, nil
		case UnderkjentHendelse:
			if err := s.kontrollerAttestant(data.Attestant); err != nil {
				return nil, err
			}
			if data.Grunn == "" {
				return nil, replay.Invariant("underkjenning requires a grunn")
			}
			felles := s.Felles.neste(evt)
			felles.Attesteringer = append(felles.Attesteringer, Attestering{
				Attestant: data.Attestant,
				Grunn:     data.Grunn,
				Kommentar: data.Kommentar,
				Tidspunkt: evt.OccurredAt,
			})
			return Vurdert{
				Felles:      felles,
				Vurderinger: slices.Clone(s.Vurderinger),
				VurdertAv:   s.Saksbehandler,
			}, nil
		case AvbruttHendelse:
			return avbryt(s, evt, data)
		}
	case Iverksatt, Avbrutt:
	}
	return nil, replay.Reject(state, evt)
}

func opprett(evt replay.Decoded, data OpprettetHendelse) (Behandling, error) {
	if data.KravgrunnlagID == "" {
		return nil, replay.Invariant("kravgrunnlag id is required")
	}
	return Opprettet{Felles: Felles{
		ID:             evt.AggregateID,
		SakID:          evt.OwnerID,
		KravgrunnlagID: data.KravgrunnlagID,
		OpprettetAv:    data.OpprettetAv,
		Opprettet:      evt.OccurredAt,
		Versjon:        evt.Version,
	}}, nil
}

func forhandsvarsle(f Felles, evt replay.Decoded, data ForhandsvarsletHendelse) (Behandling, error) {
	if data.DokumentID == uuid.Nil {
		return nil, replay.Invariant("forhandsvarsel requires a dokument id")
	}
	felles := f.neste(evt)
	felles.Forhandsvarsler = append(felles.Forhandsvarsler, Forhandsvarsel{
		DokumentID: data.DokumentID,
		Fritekst:   data.Fritekst,
		UtfortAv:   data.UtfortAv,
		Tidspunkt:  evt.OccurredAt,
	})
	return Forhandsvarslet{Felles: felles}, nil
}

func vurder(f Felles, evt replay.Decoded, data VurdertHendelse, ext Kontekst) (Behandling, error) {
	if len(data.Vurderinger) == 0 {
		return nil, replay.Invariant("at least one vurdering is required")
	}
	seen := make(map[string]struct{}, len(data.Vurderinger))
	for _, v := range data.Vurderinger {
		if _, err := time.Parse("2006-01", v.Maned); err != nil {
			return nil, replay.Invariant("invalid month %q", v.Maned)
		}
		if _, ok := seen[v.Maned]; ok {
			return nil, replay.Invariant("month %s assessed twice", v.Maned)
		}
		seen[v.Maned] = struct{}{}
		if v.Utfall != SkalTilbakekreve && v.Utfall != SkalIkkeTilbakekreve {
			return nil, replay.Invariant("unknown utfall %q for %s", v.Utfall, v.Maned)
		}
		if ext.Kravgrunnlag != nil && !slices.Contains(ext.Kravgrunnlag.Maneder, v.Maned) {
			return nil, replay.Invariant("month %s is not part of kravgrunnlag %s", v.Maned, ext.Kravgrunnlag.ID)
		}
	}
	return Vurdert{
		Felles:      f.neste(evt),
		Vurderinger: slices.Clone(data.Vurderinger),
		VurdertAv:   data.VurdertAv,
	}, nil
}

func avbryt(state Behandling, evt replay.Decoded, data AvbruttHendelse) (Behandling, error) {
	if data.Begrunnelse == "" {
		return nil, replay.Invariant("avbrudd requires a begrunnelse")
	}
	return Avbrutt{
		Felles:          state.Fellesfelter().neste(evt),
		Begrunnelse:     data.Begrunnelse,
		AvbruttAv:       data.AvbruttAv,
		Avbrutt:         evt.OccurredAt,
		ForrigeTilstand: state.StateName(),
	}, nil
}

func (s TilAttestering) kontrollerAttestant(attestant string) error {
	if attestant == "" {
		return replay.Invariant("attestant is required")
	}
	if attestant == s.Saksbehandler {
		return replay.Invariant("attestant %s cannot attest their own behandling", attestant)
	}
	return nil
}

// neste copies f for the state produced by evt so earlier states never share
// slices with later ones.
func (f Felles) neste(evt replay.Decoded) Felles {
	f.Versjon = evt.Version
	f.Forhandsvarsler = slices.Clone(f.Forhandsvarsler)
	f.Attesteringer = slices.Clone(f.Attesteringer)
	return f
}
