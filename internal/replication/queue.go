package replication

import (
	"github.com/meidoworks/nekoq-dnsreplica/internal/iface"
)

// QueueName is the backlog list written by the given role.
func QueueName(backlogKey string, role iface.ReplicatorRole) string {
	return backlogKey + ":" + role.String()
}
