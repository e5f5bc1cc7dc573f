package downloader

import (
	"context"
	"fmt"
	"time"

	"nsecli/internal/ledger"
)

// Downloader fetches one kind of NSE daily file.
//
// Download returns the stored file's path on success, an empty path
// when the exchange published nothing for the date, and an error only
// for failures a retry might cure. Implementations never return a path
// alongside an error.
type Downloader interface {
	Kind() ledger.FileKind
	Download(ctx context.Context, date time.Time) (string, error)
}

// Registry maps ledger slots to their downloaders
type Registry struct {
	byKind map[ledger.FileKind]Downloader
}

// NewRegistry builds the full downloader set backed by one shared NSE
// session. dirFor resolves the local storage directory per file kind.
func NewRegistry(client *NSEClient, dirFor func(ledger.FileKind) string) *Registry {
	r := &Registry{byKind: make(map[ledger.FileKind]Downloader)}
	r.register(
		NewCMBhavcopy(client, dirFor(ledger.KindCMBhavcopy)),
		NewFOBhavcopy(client, dirFor(ledger.KindFOBhavcopy)),
		NewCombinedOI(client, dirFor(ledger.KindCombinedOI)),
		NewFIIStatistics(client, dirFor(ledger.KindFIIStats)),
		NewParticipantOI(client, dirFor(ledger.KindParticipantOI)),
		NewParticipantVolume(client, dirFor(ledger.KindParticipantVolume)),
		NewIndices(client, dirFor(ledger.KindIndices)),
		NewEquityDeliverable(client, dirFor(ledger.KindEquityDeliverable)),
	)
	return r
}

func (r *Registry) register(downloaders ...Downloader) {
	for _, d := range downloaders {
		r.byKind[d.Kind()] = d
	}
}

// ForKind returns the downloader for a file kind
func (r *Registry) ForKind(kind ledger.FileKind) (Downloader, error) {
	d, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no downloader for kind %s", kind)
	}
	return d, nil
}

// ForSlot returns the downloader for a ledger slot name
func (r *Registry) ForSlot(slot string) (Downloader, error) {
	kind, ok := ledger.KindFromSlot(slot)
	if !ok {
		return nil, fmt.Errorf("no downloader assigned to slot %q", slot)
	}
	return r.ForKind(kind)
}

// Kinds lists the registered file kinds in slot order
func (r *Registry) Kinds() []ledger.FileKind {
	kinds := make([]ledger.FileKind, 0, len(r.byKind))
	for _, k := range ledger.AllKinds() {
		if _, ok := r.byKind[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
