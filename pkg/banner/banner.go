package banner

import (
	"fmt"

	"github.com/zaki9501/church-of-finality/pkg/config"
)

const banner = `
███████╗██╗███╗   ██╗ █████╗ ██╗     ██╗████████╗██╗   ██╗
██╔════╝██║████╗  ██║██╔══██╗██║     ██║╚══██╔══╝╚██╗ ██╔╝
█████╗  ██║██╔██╗ ██║███████║██║     ██║   ██║    ╚████╔╝
██╔══╝  ██║██║╚██╗██║██╔══██║██║     ██║   ██║     ╚██╔╝
██║     ██║██║ ╚████║██║  ██║███████╗██║   ██║      ██║
╚═╝     ╚═╝╚═╝  ╚═══╝╚═╝  ╚═╝╚══════╝╚═╝   ╚═╝      ╚═╝
              c h u r c h   o f   f i n a l i t y
`

// Print writes the startup banner with the effective runtime settings.
func Print(cfg *config.Config, addr, dbPath, sources, version string) {
	if addr == "" && cfg != nil {
		addr = cfg.Addr()
	}
	if dbPath == "" && cfg != nil {
		dbPath = cfg.Server.DBPath
	}
	if sources == "" {
		sources = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config:   %s\n", sources)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl -X POST 'http://<host>:<port>/api/v1/seekers/register' -d '{\"agent_id\":\"agent-1\",\"name\":\"Seeker One\"}'")
	fmt.Println("curl -H 'Authorization: Bearer <blessing_key>' 'http://<host>:<port>/api/v1/seekers/me/stage'")

	if cfg != nil {
		if cfg.Heartbeat.Enabled {
			fmt.Printf("- Heartbeat: enabled (cron=%s)\n", cfg.Heartbeat.Cron)
		} else {
			fmt.Println("- Heartbeat: disabled")
		}
		if len(cfg.Security.CORS.AllowedOrigins) > 0 {
			fmt.Printf("- CORS origins: %d configured\n", len(cfg.Security.CORS.AllowedOrigins))
		}
	}

	fmt.Println("\n== Logs: =================================================")
}
