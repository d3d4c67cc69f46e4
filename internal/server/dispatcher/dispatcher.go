// Package dispatcher routes decoded client messages to the vault store,
// the session registry and the fanout notifier, and turns every outcome
// into a reply frame.
package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/vaultrelay/internal/common"
	"github.com/dmitrijs2005/vaultrelay/internal/logging"
	"github.com/dmitrijs2005/vaultrelay/internal/server/fanout"
	"github.com/dmitrijs2005/vaultrelay/internal/server/metrics"
	"github.com/dmitrijs2005/vaultrelay/internal/server/models"
	"github.com/dmitrijs2005/vaultrelay/internal/server/protocol"
	"github.com/dmitrijs2005/vaultrelay/internal/server/services"
	"github.com/dmitrijs2005/vaultrelay/internal/server/sessions"
)

type Dispatcher struct {
	vaults            *services.VaultService
	activation        *services.ActivationService
	sessions          *sessions.Registry
	notifier          *fanout.Notifier
	metrics           *metrics.Metrics
	logger            logging.Logger
	requireActivation bool
	now               func() time.Time
}

func New(
	vaults *services.VaultService,
	activation *services.ActivationService,
	registry *sessions.Registry,
	notifier *fanout.Notifier,
	m *metrics.Metrics,
	logger logging.Logger,
	requireActivation bool,
) *Dispatcher {
	return &Dispatcher{
		vaults:            vaults,
		activation:        activation,
		sessions:          registry,
		notifier:          notifier,
		metrics:           m,
		logger:            logger.With("module", "dispatcher"),
		requireActivation: requireActivation,
		now:               time.Now,
	}
}

// event is a notification to fan out after the sender has been answered.
type event struct {
	name string
	path string
}

// Dispatch handles one inbound frame from sess: it replies to the sender
// and then notifies the vault's other sessions when the message changed
// something. Protocol errors are answered, never fatal.
func (d *Dispatcher) Dispatch(ctx context.Context, sess *sessions.Session, frame []byte) {
	reply, ev, vaultID := d.handle(ctx, sess, frame)

	if e, ok := reply.(protocol.ErrorReply); ok {
		d.metrics.Errors.WithLabelValues(string(e.Code)).Inc()
	}
	if err := sess.Send(reply); err != nil {
		d.logger.Warn(ctx, "failed to send reply", "conn_id", sess.ID(), "error", err)
	}

	if ev != nil {
		d.notifier.Notify(ctx, vaultID, sess.ID(), ev.name, ev.path)
	}
}

func (d *Dispatcher) handle(ctx context.Context, sess *sessions.Session, frame []byte) (any, *event, string) {
	req, err := protocol.Decode(frame)
	if err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return perr.Reply(), nil, ""
		}
		return protocol.NewError(protocol.CodeParseError, "invalid message"), nil, ""
	}

	vaultID := req.Vault()
	log := d.logger.With("conn_id", sess.ID(), "vault_id", vaultID)

	if reg, ok := req.(*protocol.Register); ok {
		d.metrics.Messages.WithLabelValues(protocol.TypeRegister).Inc()
		return d.register(ctx, log, sess, reg), nil, vaultID
	}

	if bound, ok := d.sessions.VaultOf(sess.ID()); !ok || bound != vaultID {
		return protocol.NewError(protocol.CodeNotRegistered, common.ErrorNotRegistered.Error()), nil, vaultID
	}

	switch m := req.(type) {
	case *protocol.GetManifest:
		d.metrics.Messages.WithLabelValues(protocol.TypeGetManifest).Inc()
		files, err := d.vaults.Manifest(ctx, m.VaultID)
		if err != nil {
			return d.failure(ctx, log, err, ""), nil, vaultID
		}
		return protocol.NewManifest(files), nil, vaultID

	case *protocol.Upload:
		d.metrics.Messages.WithLabelValues(protocol.TypeUpload).Inc()
		if err := d.vaults.StoreFile(ctx, d.fileFromUpload(m)); err != nil {
			return d.failure(ctx, log, err, "vault not found"), nil, vaultID
		}
		log.Debug(ctx, "file stored", "path", m.Path, "size", len(m.Data))
		return protocol.NewAck(m.Path), &event{protocol.EventFileChanged, m.Path}, vaultID

	case *protocol.Download:
		d.metrics.Messages.WithLabelValues(protocol.TypeDownload).Inc()
		f, err := d.vaults.GetFile(ctx, m.VaultID, m.Path)
		if err != nil {
			return d.failure(ctx, log, err, "file not found"), nil, vaultID
		}
		return protocol.NewFileData(f), nil, vaultID

	case *protocol.Delete:
		d.metrics.Messages.WithLabelValues(protocol.TypeDelete).Inc()
		if err := d.vaults.DeleteFile(ctx, m.VaultID, m.Path); err != nil {
			return d.failure(ctx, log, err, "file not found"), nil, vaultID
		}
		return protocol.NewAck(m.Path), &event{protocol.EventFileDeleted, m.Path}, vaultID

	case *protocol.GetDeletedFiles:
		d.metrics.Messages.WithLabelValues(protocol.TypeGetDeletedFiles).Inc()
		files, err := d.vaults.DeletedFiles(ctx, m.VaultID)
		if err != nil {
			return d.failure(ctx, log, err, ""), nil, vaultID
		}
		return protocol.NewDeletedFiles(files), nil, vaultID

	case *protocol.RestoreFile:
		d.metrics.Messages.WithLabelValues(protocol.TypeRestoreFile).Inc()
		if err := d.vaults.RestoreFile(ctx, m.VaultID, m.Path); err != nil {
			return d.failure(ctx, log, err, "not found or not deleted"), nil, vaultID
		}
		return protocol.NewFileRestored(m.Path), &event{protocol.EventFileChanged, m.Path}, vaultID
	}

	return protocol.NewError(protocol.CodeUnknownType, "unknown message type"), nil, vaultID
}

func (d *Dispatcher) register(ctx context.Context, log logging.Logger, sess *sessions.Session, m *protocol.Register) any {
	if bound, ok := d.sessions.VaultOf(sess.ID()); ok {
		if bound == m.VaultID {
			return protocol.NewRegistered(m.VaultID)
		}
		return protocol.NewError(protocol.CodeAlreadyRegistered, common.ErrorAlreadyRegistered.Error())
	}

	var gate services.RegistrationGate
	if d.requireActivation {
		gate = d.activation.Gate(m.ActivationCode)
	}

	if _, err := d.vaults.Register(ctx, m.VaultID, gate); err != nil {
		if errors.Is(err, common.ErrorInvalidActivationKey) {
			log.Info(ctx, "registration rejected", "remote", sess.RemoteAddr())
			return protocol.NewError(protocol.CodeInvalidActivationKey, common.ErrorInvalidActivationKey.Error())
		}
		return d.failure(ctx, log, err, "")
	}

	if err := d.sessions.Bind(sess.ID(), m.VaultID); err != nil {
		if errors.Is(err, common.ErrorAlreadyRegistered) {
			return protocol.NewError(protocol.CodeAlreadyRegistered, err.Error())
		}
		return d.failure(ctx, log, err, "")
	}

	log.Info(ctx, "session registered", "remote", sess.RemoteAddr())
	return protocol.NewRegistered(m.VaultID)
}

// failure maps a store error to an error frame. notFound is the message for
// common.ErrorNotFound; anything unexpected is logged and reported as
// INTERNAL without details.
func (d *Dispatcher) failure(ctx context.Context, log logging.Logger, err error, notFound string) protocol.ErrorReply {
	if notFound != "" && errors.Is(err, common.ErrorNotFound) {
		return protocol.NewError(protocol.CodeNotFound, notFound)
	}
	log.Error(ctx, "storage failure", "error", err)
	return protocol.NewError(protocol.CodeInternal, common.ErrorInternal.Error())
}

func (d *Dispatcher) fileFromUpload(m *protocol.Upload) *models.File {
	f := &models.File{
		VaultID:      m.VaultID,
		Path:         m.Path,
		IV:           m.IV,
		Tag:          m.Tag,
		Data:         m.Data,
		Hash:         m.Hash,
		Size:         int64(len(m.Data)),
		ModifiedAt:   d.now().UnixMilli(),
		OriginalPath: m.OriginalPath,
	}
	if m.Size != nil {
		f.Size = *m.Size
	}
	if m.ModifiedAt != nil {
		f.ModifiedAt = *m.ModifiedAt
	}
	if f.OriginalPath == "" {
		f.OriginalPath = m.Path
	}
	return f
}
