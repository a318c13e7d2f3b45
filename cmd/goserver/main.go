// Command goserver starts the HTTP/1.1 reactor server, wiring CLI flags
// into server.Config the way the original's main() wired its constructor
// arguments.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kfcemployee/goserver/server"
)

func main() {
	port := flag.Int("port", 1316, "listening port")
	trigMode := flag.Int("trig_mode", 3, "event trigger mode: 0=LT/LT 1=LT/ET 2=ET/LT 3=ET/ET (listener/connection)")
	timeoutMs := flag.Int("timeout_ms", 60000, "idle connection timeout in milliseconds")

	sqlHost := flag.String("sql_host", "127.0.0.1", "database host")
	sqlPort := flag.Int("sql_port", 3306, "database port")
	sqlUser := flag.String("sql_user", "root", "database user")
	sqlPassword := flag.String("sql_password", "", "database password")
	dbName := flag.String("db_name", "goserver", "database name")
	connPoolSize := flag.Int("conn_pool_size", 8, "database connection pool size")

	threadPoolSize := flag.Int("thread_pool_size", 8, "worker pool size")

	openLog := flag.Bool("open_log", true, "enable the async/sync file logger")
	logLevel := flag.Int("log_level", 1, "log level: 0=debug 1=info 2=warn 3=error")
	logQueueSize := flag.Int("log_queue_size", 1024, "async log queue capacity; 0 forces synchronous logging")

	srcDir := flag.String("src_dir", "./resources", "static asset directory")

	flag.Parse()

	cfg := server.Config{
		Port:      *port,
		TrigMode:  *trigMode,
		TimeoutMs: *timeoutMs,

		SQLHost:      *sqlHost,
		SQLPort:      *sqlPort,
		SQLUser:      *sqlUser,
		SQLPassword:  *sqlPassword,
		DBName:       *dbName,
		ConnPoolSize: *connPoolSize,

		ThreadPoolSize: *threadPoolSize,

		OpenLog:      *openLog,
		LogLevel:     *logLevel,
		LogQueueSize: *logQueueSize,

		SrcDir: *srcDir,
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("goserver: %v", err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		srv.Close()
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("goserver: %v", err)
	}
}
