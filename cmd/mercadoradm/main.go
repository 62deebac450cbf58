package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mercadorhq/mercador/internal/security/apikey"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	var (
		baseURL = envOr("MERCADOR_ADMIN_URL", "http://localhost:8080")
		key     = envOr("MERCADOR_ADMIN_KEY", "")
		out     = envOr("MERCADOR_OUT", "text")
		timeout = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "mercadoradm",
		Short: "CLI admin para Mercador (vía /v1/admin)",
	}

	root.PersistentFlags().StringVar(&baseURL, "admin-api-url", baseURL, "URL base del Admin API (env MERCADOR_ADMIN_URL)")
	root.PersistentFlags().StringVar(&key, "admin-api-key", key, "API key del Admin API (env MERCADOR_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: timeout}}
	syncClient := func() {
		cl.BaseURL = baseURL
		cl.APIKey = key
		cl.OutFormat = out
	}
	requireKey := func(cmd *cobra.Command, args []string) error {
		syncClient()
		if key == "" {
			return fmt.Errorf("falta API key (flag --admin-api-key o env MERCADOR_ADMIN_KEY)")
		}
		return nil
	}

	// ping: healthz no requiere key, pero valida conectividad
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Ping al server (GET /healthz)",
		RunE: func(cmd *cobra.Command, args []string) error {
			syncClient()
			status, body, err := cl.do("GET", "/healthz", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				fmt.Println("ok")
				return nil
			}
			cl.print(status, body)
			return nil
		},
	}

	// ─── products ───
	productsCmd := &cobra.Command{
		Use:   "products",
		Short: "Gestión del catálogo (vía /v1/admin/products)",
	}

	productsListCmd := &cobra.Command{
		Use:     "list",
		Short:   "Listar todos los productos (incluye inactivos)",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/products", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	var (
		prodName     string
		prodSlug     string
		prodDesc     string
		prodPrice    int64
		prodCurrency string
		prodActive   bool
	)
	productsCreateCmd := &cobra.Command{
		Use:     "create",
		Short:   "Crear un producto",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(map[string]any{
				"name":        prodName,
				"slug":        prodSlug,
				"description": prodDesc,
				"price_cents": prodPrice,
				"currency":    prodCurrency,
				"active":      prodActive,
			})
			if err != nil {
				return err
			}
			status, body, err := cl.do("POST", "/v1/admin/products", payload)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("create fallo: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	productsCreateCmd.Flags().StringVar(&prodName, "name", "", "Nombre del producto")
	productsCreateCmd.Flags().StringVar(&prodSlug, "slug", "", "Slug único")
	productsCreateCmd.Flags().StringVar(&prodDesc, "description", "", "Descripción")
	productsCreateCmd.Flags().Int64Var(&prodPrice, "price-cents", 0, "Precio en centavos")
	productsCreateCmd.Flags().StringVar(&prodCurrency, "currency", "COP", "Moneda ISO 4217")
	productsCreateCmd.Flags().BoolVar(&prodActive, "active", false, "Publicar inmediatamente")
	_ = productsCreateCmd.MarkFlagRequired("name")
	_ = productsCreateCmd.MarkFlagRequired("slug")
	_ = productsCreateCmd.MarkFlagRequired("price-cents")

	productsCmd.AddCommand(productsListCmd, productsCreateCmd)

	// ─── logs ───
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Logs del server (vía /v1/admin/logs)",
	}

	logsListCmd := &cobra.Command{
		Use:     "list",
		Short:   "Listar archivos de log disponibles",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/logs", nil)
			if err != nil {
				return err
			}
			cl.print(status, body)
			return nil
		},
	}

	var tailLines int
	logsTailCmd := &cobra.Command{
		Use:     "tail <archivo>",
		Short:   "Últimas líneas de un archivo de log",
		Args:    cobra.ExactArgs(1),
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/v1/admin/logs/%s?lines=%d", args[0], tailLines)
			status, body, err := cl.do("GET", path, nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("tail fallo: status=%d body=%s", status, string(body))
			}
			if cl.OutFormat == "text" {
				var out struct {
					Lines []string `json:"lines"`
				}
				if json.Unmarshal(body, &out) == nil {
					for _, line := range out.Lines {
						fmt.Println(line)
					}
					return nil
				}
			}
			cl.print(status, body)
			return nil
		},
	}
	logsTailCmd.Flags().IntVar(&tailLines, "lines", 200, "Cantidad de líneas")

	logsCmd.AddCommand(logsListCmd, logsTailCmd)

	// ─── hash-key ───
	// Genera el hash bcrypt para admin.api_key_hash (corre local, sin server).
	hashKeyCmd := &cobra.Command{
		Use:   "hash-key <clave>",
		Short: "Generar el hash bcrypt de una API key administrativa",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := apikey.Hash(args[0])
			if err != nil {
				return err
			}
			fmt.Println(h)
			return nil
		},
	}

	root.AddCommand(pingCmd, productsCmd, logsCmd, hashKeyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
