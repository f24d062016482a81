// fedigo-example is a minimal single-actor federated server demonstrating
// how to wire the framework's components into a runnable ActivityPub
// endpoint. It runs as a single binary with an in-memory store, suitable
// for local experimentation — production deployments supply their own
// kv.Store and Watermill pub/sub backend.
//
// Usage:
//
//	export FEDIGO_DOMAIN=https://example.com
//	export FEDIGO_USERNAME=alice
//	./fedigo-example
package main

import (
	"context"
	"crypto"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"

	"github.com/klppl/fedigo/collection"
	"github.com/klppl/fedigo/docloader"
	"github.com/klppl/fedigo/federation"
	"github.com/klppl/fedigo/inbox"
	"github.com/klppl/fedigo/keyring"
	"github.com/klppl/fedigo/kv"
	"github.com/klppl/fedigo/outbox"
	"github.com/klppl/fedigo/vocab"
)

func main() {
	// Structured JSON logging by default — easy to parse with any log aggregator.
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("starting fedigo-example", "version", "0.1.0")

	// ─── Configuration ────────────────────────────────────────────────────────
	domain := os.Getenv("FEDIGO_DOMAIN")
	if domain == "" {
		domain = "http://localhost:8080"
	}
	username := os.Getenv("FEDIGO_USERNAME")
	if username == "" {
		username = "alice"
	}
	baseURL, err := url.Parse(domain)
	if err != nil {
		slog.Error("invalid FEDIGO_DOMAIN", "error", err)
		os.Exit(1)
	}

	// ─── Key pair (generated fresh on every run; a real deployment persists
	// this via its own kv.Store or secret manager) ─────────────────────────────
	keyPair, err := keyring.GenerateKeyPair(keyring.RSASSAPKCS1v15)
	if err != nil {
		slog.Error("failed to generate RSA key pair", "error", err)
		os.Exit(1)
	}
	slog.Info("RSA key pair ready")

	// ─── Shared document loader and dedup/cache store ─────────────────────────
	store := kv.NewMemory()
	docLoader := docloader.New(docloader.Config{
		Store:   store,
		Product: "fedigo-example",
		Version: "0.1.0",
	})

	// ─── Durable queue (in-memory Watermill transport for local demos) ────────
	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	queue := outbox.NewWatermillQueue(pubsub, pubsub, "deliveries")
	box := &outbox.Outbox{Queue: queue}

	// ─── Federation facade ─────────────────────────────────────────────────────
	fed := federation.New(baseURL, docLoader)
	fed.Outbox = box

	actorPath := "/users/{identifier}"
	fed.SetActorDispatcher(actorPath, func(ctx *federation.Context, identifier string) (*vocab.Actor, error) {
		if identifier != username {
			return nil, nil
		}
		actor := vocab.NewPerson()
		actor.SetID(buildURL(fed, baseURL, "actor", map[string]string{"identifier": identifier}))
		actor.SetPreferredUsername(identifier)
		actor.SetInbox(buildURL(fed, baseURL, "inbox", map[string]string{"identifier": identifier}))
		actor.SetOutbox(buildURL(fed, baseURL, "outbox", map[string]string{"identifier": identifier}))
		actor.SetFollowing(buildURL(fed, baseURL, "following", map[string]string{"identifier": identifier}))
		actor.SetFollowers(buildURL(fed, baseURL, "followers", map[string]string{"identifier": identifier}))
		return actor, nil
	}).SetKeyPairsDispatcher(func(ctx *federation.Context, identifier string) ([]*keyring.KeyPair, error) {
		if identifier != username {
			return nil, nil
		}
		return []*keyring.KeyPair{keyPair}, nil
	})

	fed.SetOutboxDispatcher(actorPath+"/outbox", emptyCollection)
	fed.SetFollowingDispatcher(actorPath+"/following", emptyCollection)
	fed.SetFollowersDispatcher(actorPath+"/followers", emptyCollection)

	wireInboxListeners(fed, docLoader, actorPath+"/inbox", "/inbox")

	fed.SetNodeInfoDispatcher("/nodeinfo/2.1", func(ctx *federation.Context) (federation.NodeInfo, error) {
		return federation.NodeInfo{
			Software:  federation.NodeInfoSoftware{Name: "fedigo-example", Version: "0.1.0"},
			Protocols: []string{"activitypub"},
			Usage:     federation.NodeInfoUsage{Users: federation.NodeInfoUsers{Total: 1}},
		}, nil
	})

	// ─── Outbound delivery worker ───────────────────────────────────────────────
	worker := &outbox.Worker{
		Queue:   queue,
		Backoff: outbox.DefaultBackoffPolicy,
		ErrorSink: func(job outbox.DeliveryJob, cause error) {
			slog.Error("delivery exhausted retries", "inbox", job.Inbox, "activity", job.ActivityID, "error", cause)
		},
	}

	// ─── Graceful shutdown ──────────────────────────────────────────────────────
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := fed.StartQueue(ctx, worker); err != nil {
			slog.Error("delivery worker stopped", "error", err)
		}
	}()

	// ─── HTTP server ────────────────────────────────────────────────────────────
	r := chi.NewRouter()
	r.Get("/.well-known/webfinger", fed.WebFingerHandler(baseURL.Host))
	r.Get("/.well-known/nodeinfo", fed.WellKnownNodeInfoHandler())
	r.HandleFunc("/*", func(w http.ResponseWriter, req *http.Request) {
		fed.Fetch(w, req, federation.FetchOptions{})
	})

	httpSrv := &http.Server{Addr: ":8080", Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		slog.Info("listening", "addr", httpSrv.Addr, "domain", domain)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server stopped", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)

	slog.Info("fedigo-example stopped")
}

func emptyCollection(ctx *federation.Context, identifier string, cursor *string) (collection.Page, error) {
	return collection.Page{}, nil
}

func buildURL(fed *federation.Federation, baseURL *url.URL, routeName string, vars map[string]string) *url.URL {
	path, err := fed.Router.Build(routeName, vars)
	if err != nil {
		panic(err)
	}
	u := *baseURL
	u.Path = path
	return &u
}

// wireInboxListeners registers a minimal Create/Follow handler pair and
// the HTTP Signature key resolver backing the inbox pipeline's
// authenticity check. A production deployment would also wire
// SetResolveProofKey and SetResolveLegacyKey for the Integrity Proof and
// legacy LD Signature verification paths.
func wireInboxListeners(fed *federation.Federation, docLoader *docloader.Loader, inboxPath, sharedInboxPath string) {
	fed.SetInboxListeners(inboxPath, sharedInboxPath).
		On("Follow", func(actx *inbox.ActivityContext, activity *vocab.Activity) error {
			slog.Info("received Follow", "actor", firstActorID(activity))
			return nil
		}).
		On("Create", func(actx *inbox.ActivityContext, activity *vocab.Activity) error {
			slog.Info("received Create", "actor", firstActorID(activity))
			return nil
		}).
		OnError(func(actx *inbox.ActivityContext, activity *vocab.Activity, cause error) bool {
			slog.Error("listener failed", "error", cause)
			return false
		})

	fed.SetResolveHTTPSigKey(func(ctx context.Context, keyID string) (crypto.PublicKey, error) {
		return resolveRemoteKey(ctx, docLoader, keyID)
	})
}

func firstActorID(activity *vocab.Activity) string {
	ids := activity.ActorIds()
	if len(ids) == 0 {
		return ""
	}
	return ids[0].String()
}

// resolveRemoteKey dereferences the actor owning keyID and extracts its
// legacy publicKeyPem, the verification key HTTP Signatures require.
func resolveRemoteKey(ctx context.Context, docLoader *docloader.Loader, keyID string) (crypto.PublicKey, error) {
	u, err := url.Parse(keyID)
	if err != nil {
		return nil, fmt.Errorf("fedigo-example: parse key id %q: %w", keyID, err)
	}
	u.Fragment = ""
	doc, err := docLoader.Load(ctx, u.String())
	if err != nil {
		return nil, err
	}
	publicKey, ok := doc.Document["publicKey"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("fedigo-example: %s has no publicKey", u.String())
	}
	pem, _ := publicKey["publicKeyPem"].(string)
	pub, _, err := keyring.ImportSpki([]byte(pem))
	return pub, err
}
