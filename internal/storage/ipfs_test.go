package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lmarchetti/inkwell/internal/util"
)

// fakeIPFSNode emulates the HTTP API of a node: content-addressed add with
// explicit pinning, like a real daemon.
type fakeIPFSNode struct {
	blocks map[string][]byte
	pinned map[string]bool
}

func (f *fakeIPFSNode) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arg := r.URL.Query().Get("arg")

		switch r.URL.Path {
		case "/api/v0/add":
			file, _, err := r.FormFile("file")
			if err != nil {
				t.Errorf("reading multipart file: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			content, err := io.ReadAll(file)
			if err != nil {
				t.Errorf("reading file content: %v", err)
			}

			cid := "Qm" + util.ContentHash(content)[:16]
			f.blocks[cid] = content
			json.NewEncoder(w).Encode(map[string]string{"Hash": cid})

		case "/api/v0/pin/add":
			if _, ok := f.blocks[arg]; !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			f.pinned[arg] = true
			w.WriteHeader(http.StatusOK)

		case "/api/v0/cat":
			content, ok := f.blocks[arg]
			if !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write(content)

		case "/api/v0/object/stat":
			if _, ok := f.blocks[arg]; !ok {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)

		case "/api/v0/pin/ls":
			keys := map[string]map[string]string{}
			for cid := range f.pinned {
				keys[cid] = map[string]string{"Type": "recursive"}
			}
			json.NewEncoder(w).Encode(map[string]any{"Keys": keys})

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestIPFS(t *testing.T) (*IPFS, *fakeIPFSNode) {
	t.Helper()

	fake := &fakeIPFSNode{
		blocks: map[string][]byte{},
		pinned: map[string]bool{},
	}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	return NewIPFS(IPFSConfig{APIURL: server.URL}), fake
}

func TestIPFSStorePins(t *testing.T) {
	backend, fake := newTestIPFS(t)
	ctx := context.Background()
	content := []byte("distributed bytes")

	result, err := backend.Store(ctx, content, nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if result.URL != "ipfs://"+result.ID {
		t.Errorf("url = %q, want ipfs scheme with cid", result.URL)
	}
	if !fake.pinned[result.ID] {
		t.Error("stored content not pinned")
	}

	got, err := backend.Retrieve(ctx, result.ID)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("retrieved %q, want %q", got, content)
	}
}

func TestIPFSStoreContentAddressed(t *testing.T) {
	backend, _ := newTestIPFS(t)
	ctx := context.Background()
	content := []byte("identical payload")

	first, err := backend.Store(ctx, content, nil)
	if err != nil {
		t.Fatalf("first Store: %v", err)
	}
	second, err := backend.Store(ctx, content, nil)
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("identical content got distinct cids: %q vs %q", first.ID, second.ID)
	}
}

func TestIPFSRetrieveMissing(t *testing.T) {
	backend, _ := newTestIPFS(t)

	_, err := backend.Retrieve(context.Background(), "QmMissing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestIPFSExists(t *testing.T) {
	backend, _ := newTestIPFS(t)
	ctx := context.Background()

	result, err := backend.Store(ctx, []byte("here"), nil)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	exists, err := backend.Exists(ctx, result.ID)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Error("stored cid reported missing")
	}

	exists, err = backend.Exists(ctx, "QmAbsent")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("unknown cid reported present")
	}
}

func TestIPFSDeleteIsImmutable(t *testing.T) {
	backend, _ := newTestIPFS(t)

	err := backend.Delete(context.Background(), "QmAnything")
	if !errors.Is(err, ErrImmutable) {
		t.Errorf("got %v, want ErrImmutable", err)
	}
}

func TestIPFSListPinned(t *testing.T) {
	backend, _ := newTestIPFS(t)
	ctx := context.Background()

	a, _ := backend.Store(ctx, []byte("first"), nil)
	b, _ := backend.Store(ctx, []byte("second"), nil)

	list, err := backend.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d pins, want 2", len(list))
	}

	seen := map[string]bool{}
	for _, m := range list {
		seen[m.ID] = true
	}
	if !seen[a.ID] || !seen[b.ID] {
		t.Errorf("pin listing %v missing stored cids", seen)
	}
}
