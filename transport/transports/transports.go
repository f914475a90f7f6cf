// Package transports registers every built-in backend with the default
// registry. Import it for side effects.
package transports

import (
	_ "github.com/drblury/replyflow/transport/aws"
	_ "github.com/drblury/replyflow/transport/channel"
	_ "github.com/drblury/replyflow/transport/http"
	_ "github.com/drblury/replyflow/transport/kafka"
	_ "github.com/drblury/replyflow/transport/nats"
	_ "github.com/drblury/replyflow/transport/rabbitmq"
)
