package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/task-manager/domain/access"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// AuditPort exposes the audit trail to other modules.
type AuditPort interface {
	ListEntries(ctx context.Context, actor access.Principal, limit int) ([]Entry, error)
}

type auditAdapter struct {
	container mono.ServiceContainer
}

// NewAuditAdapter creates an AuditPort over the audit module's services.
func NewAuditAdapter(container mono.ServiceContainer) AuditPort {
	if container == nil {
		panic("audit adapter requires non-nil ServiceContainer")
	}
	return &auditAdapter{container: container}
}

func (a *auditAdapter) ListEntries(ctx context.Context, actor access.Principal, limit int) ([]Entry, error) {
	req := ListEntriesRequest{Actor: actor, Limit: limit}
	var resp ListEntriesResponse

	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListEntries,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("%s request failed: %w", ServiceListEntries, err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}
