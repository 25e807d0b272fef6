package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type StructuredJSONConfig struct {
	App struct {
		EncryptionSecret string `json:"encryption_secret"`
		FreeLimit        uint64 `json:"free_limit"`
		Version          string `json:"version"`
	} `json:"app,omitempty"`

	Model struct {
		EncryptedPath string `json:"encrypted_path"`
		DecryptedPath string `json:"decrypted_path"`
		GatePath      string `json:"gate_path"`
	} `json:"model,omitempty"`

	Storage struct {
		QuotaFile    string `json:"quota_file"`
		HistoryDB    string `json:"history_db"`
		SessionFile  string `json:"session_file"`
		DeviceIDFile string `json:"device_id_file"`

		DB struct {
			DSN string `json:"dsn"`
		} `json:"db,omitempty"`
	} `json:"storage,omitempty"`

	Server struct {
		HTTPAddress    string   `json:"http_address"`
		RequestTimeout Duration `json:"request_timeout"`
		MaxUploadBytes int64    `json:"max_upload_bytes"`
	} `json:"server,omitempty"`

	Backend struct {
		BaseURL string   `json:"base_url"`
		Timeout Duration `json:"timeout"`
	} `json:"backend,omitempty"`

	Update struct {
		CheckURL string   `json:"check_url"`
		Interval Duration `json:"interval"`
	} `json:"update,omitempty"`
}

func parseJSON(jsonFilePath string) (*StructuredConfig, error) {
	jsonFile, err := os.Open(jsonFilePath)
	if err != nil {
		return nil, fmt.Errorf("error reading a json file: %w", err)
	}
	defer jsonFile.Close()

	var jsonCfg StructuredJSONConfig
	if err := json.NewDecoder(jsonFile).Decode(&jsonCfg); err != nil {
		return nil, fmt.Errorf("error decoding json configs: %w", err)
	}

	cfg := &StructuredConfig{
		App: App{
			EncryptionSecret: jsonCfg.App.EncryptionSecret,
			FreeLimit:        jsonCfg.App.FreeLimit,
			Version:          jsonCfg.App.Version,
		},
		Model: Model{
			EncryptedPath: jsonCfg.Model.EncryptedPath,
			DecryptedPath: jsonCfg.Model.DecryptedPath,
			GatePath:      jsonCfg.Model.GatePath,
		},
		Storage: Storage{
			QuotaFile:    jsonCfg.Storage.QuotaFile,
			HistoryDB:    jsonCfg.Storage.HistoryDB,
			SessionFile:  jsonCfg.Storage.SessionFile,
			DeviceIDFile: jsonCfg.Storage.DeviceIDFile,
			DB: DB{
				DSN: jsonCfg.Storage.DB.DSN,
			},
		},
		Server: Server{
			HTTPAddress:    jsonCfg.Server.HTTPAddress,
			RequestTimeout: time.Duration(jsonCfg.Server.RequestTimeout),
			MaxUploadBytes: jsonCfg.Server.MaxUploadBytes,
		},
		Backend: Backend{
			BaseURL: jsonCfg.Backend.BaseURL,
			Timeout: time.Duration(jsonCfg.Backend.Timeout),
		},
		Update: Update{
			CheckURL: jsonCfg.Update.CheckURL,
			Interval: time.Duration(jsonCfg.Update.Interval),
		},
	}

	return cfg, nil
}

// Duration is a wrapper around time.Duration that supports JSON
// unmarshaling from strings like "1h", "30s".
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = Duration(tmp)
		return nil
	default:
		return json.Unmarshal(b, (*time.Duration)(d))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}
