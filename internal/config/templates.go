package config

import (
	"fmt"
	"os"
)

func Template() string {
	return jdwpctlTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(jdwpctlTemplate), 0o600)
}

const jdwpctlTemplate = `# jdwpctl settings. Start the target VM with
#   -agentlib:jdwp=transport=dt_socket,server=y,suspend=n,address=*:8000
address = "localhost:8000"

connect_timeout = "5s"
handshake_timeout = "5s"
# "0s" waits forever for a reply.
read_timeout = "30s"
write_timeout = "15s"
max_packet_bytes = 67108864

max_connect_attempts = 1
backoff_initial = "250ms"
backoff_max = "5s"
backoff_multiplier = 2.0
backoff_jitter = true

# Reach address through an SSH bastion. address is then resolved on the
# bastion, so "localhost:8000" means the VM on that host.
# ssh_host = "bastion.example.com:22"
# ssh_user = "deploy"
# ssh_key_file = "/home/deploy/.ssh/id_ed25519"
# Defaults to $HOME/.ssh/known_hosts.
# ssh_known_hosts = "/home/deploy/.ssh/known_hosts"
# ssh_insecure_skip_host_key = false

log_level = "info"
# metrics_file = "/var/lib/node_exporter/textfile/jdwpctl.prom"
`
