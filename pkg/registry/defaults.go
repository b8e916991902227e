package registry

import (
	"github.com/dripkit/dripkit/pkg/executors/addtag"
	"github.com/dripkit/dripkit/pkg/executors/ifelse"
	"github.com/dripkit/dripkit/pkg/executors/placeholder"
	"github.com/dripkit/dripkit/pkg/executors/removetag"
	"github.com/dripkit/dripkit/pkg/executors/sendemail"
	"github.com/dripkit/dripkit/pkg/protocol"
)

// Dependencies carries the collaborators the built-in executors need.
type Dependencies struct {
	Tags        protocol.TagMutator
	Templates   protocol.TemplateResolver
	Senders     protocol.SenderResolver
	Mailer      protocol.Mailer
	Attribution protocol.AttributionStore
}

// RegisterDefaultExecutors registers every built-in step executor.
func (r *Registry) RegisterDefaultExecutors(deps Dependencies) {
	r.RegisterExecutor(ifelse.NewFactory())
	r.RegisterExecutor(placeholder.NewFactory())
	r.RegisterExecutor(addtag.NewFactory(deps.Tags))
	r.RegisterExecutor(removetag.NewFactory(deps.Tags))
	r.RegisterExecutor(sendemail.NewFactory(deps.Templates, deps.Senders, deps.Mailer, deps.Attribution))
}
