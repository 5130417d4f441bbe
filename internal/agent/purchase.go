package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nextlevelbuilder/radar/internal/budget"
	"github.com/nextlevelbuilder/radar/internal/channels"
	"github.com/nextlevelbuilder/radar/internal/tools"
)

// Finalizer closes menu-driven purchases through the same finalize_purchase
// tool the model uses, so the store is notified the same way. It implements
// menu.Finalizer.
type Finalizer struct {
	tools     *tools.Registry
	transport channels.Transport
}

func NewFinalizer(registry *tools.Registry, transport channels.Transport) *Finalizer {
	return &Finalizer{tools: registry, transport: transport}
}

func (f *Finalizer) Finalize(ctx context.Context, userID string, st budget.StoreTotal) (string, error) {
	args, err := json.Marshal(map[string]interface{}{
		"store":        st.Store,
		"items":        st.Items,
		"total":        st.Total,
		"customer_ref": userID,
	})
	if err != nil {
		return "", fmt.Errorf("finalize: encode arguments: %w", err)
	}

	ctx = tools.WithToolUserID(ctx, userID)
	res := f.tools.Execute(ctx, finalizeToolName, string(args))
	if res.IsError {
		if res.Err != nil {
			return "", fmt.Errorf("finalize %s: %w", st.Store, res.Err)
		}
		return "", errors.New("finalize " + st.Store + ": " + res.ForLLM)
	}

	if n := res.Notice; n != nil && f.transport != nil {
		if err := f.transport.SendText(ctx, n.Recipient, n.Text); err != nil {
			slog.Error("agent: notice delivery failed", "user", userID, "recipient", n.Recipient, "error", err)
		}
	}

	if res.ForUser != "" {
		return res.ForUser, nil
	}
	return res.ForLLM, nil
}
