package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nip-resolver/internal/evidence"
	"github.com/sells-group/nip-resolver/internal/nip"
	"github.com/sells-group/nip-resolver/internal/registry"
)

// scoreRequest carries the facts known about one NIP. It is the body of
// POST /v1/score and is filled from flags by the score command.
type scoreRequest struct {
	NIP            string `json:"nip"`
	RegistryFound  bool   `json:"registry_found"`
	RegistryName   string `json:"registry_name,omitempty"`
	RegistryCity   string `json:"registry_city,omitempty"`
	RegistryStreet string `json:"registry_street,omitempty"`
	InputName      string `json:"input_name,omitempty"`
	OnDomain       string `json:"on_domain,omitempty"`
	CRMFound       bool   `json:"crm_found"`
	CRMName        string `json:"crm_name,omitempty"`
	SourceURL      string `json:"source_url,omitempty"`
	// Lookup fetches the registry facts instead of trusting the request.
	Lookup bool `json:"lookup"`
}

// scoreNIP builds evidence for req and decides it. reg is consulted only
// when req.Lookup is set.
func scoreNIP(ctx context.Context, s *evidence.Scorer, reg registry.Lookup, req scoreRequest) (*evidence.Candidate, error) {
	id, ok := nip.Normalize(req.NIP)
	if !ok {
		return nil, eris.Errorf("score: %q is not a 10-digit NIP", req.NIP)
	}

	facts := evidence.RegistryFacts{
		Found:  req.RegistryFound || req.RegistryName != "",
		Name:   req.RegistryName,
		City:   req.RegistryCity,
		Street: req.RegistryStreet,
	}
	if req.Lookup && nip.ValidChecksum(id) {
		out := reg.Lookup(ctx, id)
		if !out.OK {
			return nil, eris.Errorf("score: registry unavailable: %s", out.Reason)
		}
		facts = evidence.RegistryFacts{
			Found:  out.Value.Found,
			Name:   out.Value.Name,
			City:   out.Value.City,
			Street: out.Value.Street,
		}
	}

	return s.ScoreAndDecide(evidence.Inputs{
		NIP:       id,
		Registry:  facts,
		InputName: req.InputName,
		OnDomain:  nip.NormalizeDomain(req.OnDomain),
		CRMFound:  req.CRMFound || req.CRMName != "",
		CRMName:   req.CRMName,
		SourceURL: req.SourceURL,
		Origin:    "manual",
	}), nil
}

var scoreReq scoreRequest

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score the evidence for one NIP and decide ACCEPT, SUSPECT or REJECT",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("score"); err != nil {
			return err
		}

		env, err := initResolver(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		c, err := scoreNIP(ctx, env.Scorer, env.Registry, scoreReq)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	},
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&scoreReq.NIP, "nip", "", "NIP to score (required)")
	f.BoolVar(&scoreReq.RegistryFound, "registry-found", false, "the registry knows the NIP")
	f.StringVar(&scoreReq.RegistryName, "registry-name", "", "registered company name (implies --registry-found)")
	f.StringVar(&scoreReq.RegistryCity, "registry-city", "", "registered city")
	f.StringVar(&scoreReq.RegistryStreet, "registry-street", "", "registered street")
	f.StringVar(&scoreReq.InputName, "input-name", "", "company name from the lead")
	f.StringVar(&scoreReq.OnDomain, "on-domain", "", "company domain the NIP was printed on")
	f.BoolVar(&scoreReq.CRMFound, "crm", false, "the CRM account carries this NIP")
	f.StringVar(&scoreReq.CRMName, "crm-name", "", "CRM account name (implies --crm)")
	f.StringVar(&scoreReq.SourceURL, "source-url", "", "URL the NIP was found on")
	f.BoolVar(&scoreReq.Lookup, "lookup", false, "fetch registry facts from GUS instead of the flags")
	_ = scoreCmd.MarkFlagRequired("nip")
	rootCmd.AddCommand(scoreCmd)
}
