package main

import (
  "fmt"
  "os"

  "github.com/deepen-live/deepen-backend/internal/app"
)

func main() {
  a, err := app.New()
  if err != nil {
    fmt.Printf("Failed to init app: %v\n", err)
    os.Exit(1)
  }
  defer a.Close()

  if err := a.Start(); err != nil {
    a.Log.Error("Failed to start background workers", "error", err.Error())
    os.Exit(1)
  }

  addr := ":" + a.Cfg.Port
  a.Log.Info("Server listening", "addr", addr)
  if err := a.Run(addr); err != nil {
    a.Log.Error("Server failed", "error", err.Error())
  }
}
